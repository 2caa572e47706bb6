package internal

import (
	"sync"

	"github.com/Krajiyah/beetle-relay/pkg/models"
)

// Forwarded is one frame handed upstream
type Forwarded struct {
	Peripheral string
	Frame      []byte
}

// RecordingForwarder remembers every frame it is asked to forward
type RecordingForwarder struct {
	mutex     sync.Mutex
	forwarded []Forwarded
	Err       error
}

func (f *RecordingForwarder) Forward(p models.Peripheral, frame []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.forwarded = append(f.forwarded, Forwarded{p.Name, append([]byte{}, frame...)})
	return nil
}

func (f *RecordingForwarder) Forwarded() []Forwarded {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]Forwarded{}, f.forwarded...)
}
