package models

import (
	"fmt"
	"strings"
)

// Role identifies which Beetle a peripheral is and therefore which header byte its frames carry
type Role int

const (
	// Gun is the blaster Beetle
	Gun Role = iota
	// Glove is the IMU glove Beetle
	Glove
	// Vest is the hit-detecting vest Beetle
	Vest
)

var (
	roleNames   = []string{"gun", "glove", "vest"}
	roleHeaders = []byte{71, 77, 86}
)

func (r Role) String() string {
	return roleNames[r]
}

// Header returns the frame header byte a Beetle with this role sends
func (r Role) Header() byte {
	return roleHeaders[r]
}

// ParseRole maps a config name onto a Role
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown peripheral role %q", s)
}

// Peripheral is the static identity of one Beetle
type Peripheral struct {
	Address string
	Name    string
	Role    Role
}

// NewPeripheral builds a descriptor for the given role
func NewPeripheral(addr, name string, role Role) Peripheral {
	return Peripheral{Address: addr, Name: name, Role: role}
}

// Header returns the header byte frames from this peripheral must start with
func (p Peripheral) Header() byte { return p.Role.Header() }

func (p Peripheral) String() string { return fmt.Sprintf("%s (%s)", p.Name, p.Address) }
