package act

import (
	"google.golang.org/protobuf/proto"

	"ergo.services/actor/gen"
)

// Sender is implemented by gen.Node and gen.Process.
type Sender interface {
	Send(to gen.PID, name gen.Atom, body []byte) error
}

// InstallProto installs the handler for the named message carrying a protobuf
// payload. newMessage must return an empty message to decode into. Malformed
// payloads are logged and dropped.
func InstallProto[M proto.Message](process gen.Process, name gen.Atom,
	newMessage func() M, handler func(from gen.PID, message M) error) error {

	return process.Install(name, func(from gen.PID, body []byte) error {
		message := newMessage()
		if err := proto.Unmarshal(body, message); err != nil {
			process.Log().Error("unable to decode message %q from %s: %s", name, from, err)
			return nil
		}
		return handler(from, message)
	})
}

// SendProto encodes the message and sends it with the given name.
func SendProto(sender Sender, to gen.PID, name gen.Atom, message proto.Message) error {
	body, err := proto.Marshal(message)
	if err != nil {
		return err
	}
	return sender.Send(to, name, body)
}
