package remote

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// VirtualPortName is the input created when no device is named.
const VirtualPortName = "riffloop remote"

// Listener receives pedal presses from one MIDI input.
type Listener struct {
	driver *rtmididrv.Driver // only for a virtual port
	in     drivers.In
	stop   func()
}

// Listen opens the input whose name contains portName, or a virtual input
// when portName is empty, and calls fn for each mapped press. fn runs on the
// MIDI driver's goroutine.
func Listen(portName string, m Mapping, fn func(Action), log logrus.FieldLogger) (*Listener, error) {
	l := &Listener{}
	if portName == "" {
		driver, err := rtmididrv.New()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MIDI driver: %w", err)
		}
		in, err := driver.OpenVirtualIn(VirtualPortName)
		if err != nil {
			driver.Close()
			return nil, fmt.Errorf("failed to create virtual MIDI port: %w", err)
		}
		l.driver, l.in = driver, in
	} else {
		in, err := findIn(portName)
		if err != nil {
			return nil, err
		}
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("failed to open port %s: %w", in.String(), err)
		}
		l.in = in
	}

	stop, err := l.in.Listen(func(data []byte, _ int32) {
		a, ok := m.Translate(data)
		if !ok {
			return
		}
		log.WithField("action", a.String()).Debug("pedal")
		fn(a)
	}, drivers.ListenConfig{})
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to MIDI port: %w", err)
	}
	l.stop = stop
	log.WithField("port", l.in.String()).Info("listening for MIDI remote")
	return l, nil
}

func findIn(name string) (drivers.In, error) {
	for _, in := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(in.String()), strings.ToLower(name)) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("no MIDI input matching %q", name)
}

// Port returns the input's name.
func (l *Listener) Port() string {
	return l.in.String()
}

// Close stops listening and releases the port.
func (l *Listener) Close() error {
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
	var err error
	if l.in != nil {
		err = l.in.Close()
	}
	if l.driver != nil {
		l.driver.Close()
	}
	return err
}
