package midi

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var (
	ErrPortTimeout  = errors.New("midi: port listing timed out")
	ErrPortNotFound = errors.New("midi: no matching output port")
)

// DefaultPortTimeout bounds a port scan
const DefaultPortTimeout = 3 * time.Second

// OutPorts lists output ports. The driver call runs in its own goroutine
// because CoreMIDI can hang.
func OutPorts(timeout time.Duration) ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case ports := <-ch:
		return ports, nil
	case <-time.After(timeout):
		return nil, ErrPortTimeout
	}
}

// PortNames returns the names of the output ports
func PortNames(timeout time.Duration) ([]string, error) {
	ports, err := OutPorts(timeout)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names, nil
}

// matchPort returns the index of the first name containing want, ignoring
// case. An empty want picks the first port.
func matchPort(names []string, want string) int {
	if len(names) == 0 {
		return -1
	}
	if want == "" {
		return 0
	}
	want = strings.ToLower(want)
	for i, n := range names {
		if strings.ToLower(n) == want {
			return i
		}
	}
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return i
		}
	}
	return -1
}

// Open finds the output port matching name and returns a sender for it
func Open(name string, timeout time.Duration) (Send, string, error) {
	ports, err := OutPorts(timeout)
	if err != nil {
		return nil, "", err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	idx := matchPort(names, name)
	if idx < 0 {
		return nil, "", errors.Wrapf(ErrPortNotFound, "%q", name)
	}
	send, err := gomidi.SendTo(ports[idx])
	if err != nil {
		return nil, "", errors.Wrapf(err, "open %s", names[idx])
	}
	return Send(send), names[idx], nil
}
