package protocol

import "github.com/pkg/errors"

// ClientHandshakePayload is the body of the client HANDSHAKE message.
type ClientHandshakePayload struct {
	Username string
	Version  string
}

func (m *ClientHandshakePayload) Encode() []byte {
	buf := AppendString(nil, m.Username)
	return AppendString(buf, m.Version)
}

func (m *ClientHandshakePayload) Decode(payload []byte) error {
	var err error
	m.Username, payload, err = ReadString(payload)
	if err != nil {
		return errors.Wrap(err, "read username failed")
	}
	m.Version, _, err = ReadString(payload)
	return errors.Wrap(err, "read version failed")
}

// ServerHandshakePayload is the body of the server HANDSHAKE reply.
type ServerHandshakePayload struct {
	ProtocolVersion int32
	ServerVersion   string
	ClientID        int32
}

func (m *ServerHandshakePayload) Encode() []byte {
	buf := AppendInt32(nil, m.ProtocolVersion)
	buf = AppendString(buf, m.ServerVersion)
	return AppendInt32(buf, m.ClientID)
}

func (m *ServerHandshakePayload) Decode(payload []byte) error {
	var err error
	m.ProtocolVersion, payload, err = ReadInt32(payload)
	if err != nil {
		return errors.Wrap(err, "read protocol version failed")
	}
	m.ServerVersion, payload, err = ReadString(payload)
	if err != nil {
		return errors.Wrap(err, "read server version failed")
	}
	m.ClientID, _, err = ReadInt32(payload)
	return errors.Wrap(err, "read client id failed")
}

// ServerSettingsPayload is the fixed 13-byte SERVER_SETTINGS body.
type ServerSettingsPayload struct {
	UpdateIntervalMS       int32
	ScreenshotIntervalMS   int32
	ScreenshotMaxHeight    int32
	InactiveShipsPerUpdate byte
}

// ServerSettingsSize is the exact encoded size of ServerSettingsPayload.
const ServerSettingsSize = 13

func (m *ServerSettingsPayload) Encode() []byte {
	buf := AppendInt32(nil, m.UpdateIntervalMS)
	buf = AppendInt32(buf, m.ScreenshotIntervalMS)
	buf = AppendInt32(buf, m.ScreenshotMaxHeight)
	return append(buf, m.InactiveShipsPerUpdate)
}

func (m *ServerSettingsPayload) Decode(payload []byte) error {
	if len(payload) != ServerSettingsSize {
		return errors.Errorf("server settings payload must be %d bytes, got %d", ServerSettingsSize, len(payload))
	}
	var err error
	m.UpdateIntervalMS, payload, err = ReadInt32(payload)
	if err != nil {
		return err
	}
	m.ScreenshotIntervalMS, payload, err = ReadInt32(payload)
	if err != nil {
		return err
	}
	m.ScreenshotMaxHeight, payload, err = ReadInt32(payload)
	if err != nil {
		return err
	}
	m.InactiveShipsPerUpdate = payload[0]
	return nil
}

// ScreenshotPayload carries one screenshot in either direction: shared by a
// client, or pushed by the server to a watcher.
type ScreenshotPayload struct {
	Index       int32
	Player      string
	Description string
	Image       []byte
}

func (m *ScreenshotPayload) Encode() []byte {
	buf := AppendInt32(nil, m.Index)
	buf = AppendString(buf, m.Player)
	buf = AppendString(buf, m.Description)
	return AppendBytes(buf, m.Image)
}

func (m *ScreenshotPayload) Decode(payload []byte) error {
	var err error
	m.Index, payload, err = ReadInt32(payload)
	if err != nil {
		return errors.Wrap(err, "read index failed")
	}
	m.Player, payload, err = ReadString(payload)
	if err != nil {
		return errors.Wrap(err, "read player failed")
	}
	m.Description, payload, err = ReadString(payload)
	if err != nil {
		return errors.Wrap(err, "read description failed")
	}
	img, _, err := ReadBytes(payload)
	if err != nil {
		return errors.Wrap(err, "read image failed")
	}
	m.Image = append([]byte(nil), img...)
	return nil
}
