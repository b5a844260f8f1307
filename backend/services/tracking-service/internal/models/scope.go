package models

// Scope restricts read queries to the devices a caller may see.
type Scope struct {
	TenantID int64
	Global   bool
}

// GlobalScope sees every device.
func GlobalScope() Scope {
	return Scope{Global: true}
}

// Allows reports whether the scope may read the device.
func (s Scope) Allows(d *Device) bool {
	return s.Global || d.BelongsTo(s.TenantID)
}

// PositionFilter narrows position history listings.
type PositionFilter struct {
	Scope    Scope
	DeviceID int64
	Limit    int
}
