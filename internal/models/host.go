package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SystemTarget is the pseudo-target for metrics of the machine hostpulse
// itself runs on. It is valid anywhere a host id is accepted as a target.
const SystemTarget = "system"

type Host struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Address   string         `gorm:"not null" json:"address"`
	Type      string         `gorm:"default:'server'" json:"type"` // server, switch, router, appliance
	Tags      datatypes.JSON `json:"tags"`
	Notes     string         `json:"notes"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	Protocols datatypes.JSON `json:"protocols"` // JSON array of protocol names
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (h *Host) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// ProtocolList decodes the Protocols column. Hosts created without an
// explicit set are checked over ICMP and SSH.
func (h *Host) ProtocolList() []string {
	if len(h.Protocols) == 0 {
		return []string{"icmp", "ssh"}
	}
	var protos []string
	if err := json.Unmarshal(h.Protocols, &protos); err != nil || len(protos) == 0 {
		return []string{"icmp", "ssh"}
	}
	return protos
}

// TagList decodes the Tags column.
func (h *Host) TagList() []string {
	var tags []string
	if len(h.Tags) == 0 {
		return tags
	}
	_ = json.Unmarshal(h.Tags, &tags)
	return tags
}
