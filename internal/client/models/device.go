// Package models defines the domain records synchronized with a gpodder
// server: devices, subscription diffs, episode actions, sync checkpoints and
// the directory records returned by the public API.
package models

import (
	"regexp"

	"github.com/dmitrijs2005/gposync/internal/common"
)

// DeviceType classifies a client device.
type DeviceType string

const (
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeLaptop  DeviceType = "laptop"
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeServer  DeviceType = "server"
	DeviceTypeOther   DeviceType = "other"
)

// Valid reports whether t is one of the known device types.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeDesktop, DeviceTypeLaptop, DeviceTypeMobile, DeviceTypeServer, DeviceTypeOther:
		return true
	}
	return false
}

var deviceIDPattern = regexp.MustCompile(`^[\w.-]+$`)

// Device is a client registered under an account.
type Device struct {
	ID            string
	Caption       string
	Type          DeviceType
	Subscriptions int
}

// DeviceUpdate carries the optional fields of a device update; nil fields are
// left unchanged on the server.
type DeviceUpdate struct {
	Caption *string
	Type    *DeviceType
}

// ValidateDeviceID checks id against the server's device id alphabet.
func ValidateDeviceID(id string) error {
	if !deviceIDPattern.MatchString(id) {
		return &common.ValidationError{Field: "device", Value: id, Reason: `must match [\w.-]+`}
	}
	return nil
}

// Validate checks the update before it is sent.
func (u DeviceUpdate) Validate() error {
	if u.Type != nil && !u.Type.Valid() {
		return &common.ValidationError{Field: "type", Value: string(*u.Type), Reason: "unknown device type"}
	}
	return nil
}
