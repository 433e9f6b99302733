package session

// ActivityLevel is the client-reported coarse state used for display. Levels
// only ever rise within one connection.
type ActivityLevel int32

const (
	ActivityInactive ActivityLevel = iota
	ActivityInGame
	ActivityInFlight
)

func (l ActivityLevel) String() string {
	switch l {
	case ActivityInactive:
		return "inactive"
	case ActivityInGame:
		return "in game"
	case ActivityInFlight:
		return "in flight"
	}
	return "unknown"
}
