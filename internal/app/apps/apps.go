package apps

import (
	"context"

	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// App is a runnable application entrypoint.
type App interface {
	Run(ctx context.Context, args []string) error
}
