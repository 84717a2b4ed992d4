// Package session owns the active-record lifecycle: which slot is open,
// debounced persistence of local edits, and application of remote updates
// arriving on the per-slot broadcast channel.
package session

import "github.com/ifsi-tools/dossier-api/dossier"

// Record sections a permission set can gate individually.
const (
	SectionHeader        = "header"
	SectionAdmin         = "admin"
	SectionVie           = "vie"
	SectionObservations  = "observations"
	SectionTransmissions = "transmissions"
	SectionPrescriptions = "prescriptions"
	SectionDiagramme     = "diagramme"
	SectionPancarte      = "pancarte"
	SectionBiologie      = "biologie"
	SectionComptesRendus = "comptesRendus"
)

// Permissions is the permission set handed over by the account layer. It
// governs which sections may be mutated and whether save/load/export are
// allowed at all. A denied action is a silent no-op, never an error.
type Permissions struct {
	IsStudent    bool     `json:"isStudent"`
	Subscription string   `json:"subscription"`
	AllowedRooms []string `json:"allowedRooms"`

	Header        bool `json:"header"`
	Admin         bool `json:"admin"`
	Vie           bool `json:"vie"`
	Observations  bool `json:"observations"`
	Transmissions bool `json:"transmissions"`

	PrescriptionsAdd      bool `json:"prescriptions_add"`
	PrescriptionsDelete   bool `json:"prescriptions_delete"`
	PrescriptionsValidate bool `json:"prescriptions_validate"`

	Diagramme     bool `json:"diagramme"`
	Pancarte      bool `json:"pancarte"`
	Biologie      bool `json:"biologie"`
	ComptesRendus bool `json:"comptesRendus"`
}

// TrainerPermissions returns the full permission set a formateur holds.
func TrainerPermissions() Permissions {
	return Permissions{
		Header: true, Admin: true, Vie: true,
		Observations: true, Transmissions: true,
		PrescriptionsAdd: true, PrescriptionsDelete: true, PrescriptionsValidate: true,
		Diagramme: true, Pancarte: true, Biologie: true, ComptesRendus: true,
	}
}

// CanEditSection reports whether the given record section may be mutated.
func (p Permissions) CanEditSection(section string) bool {
	switch section {
	case SectionHeader:
		return p.Header
	case SectionAdmin:
		return p.Admin
	case SectionVie:
		return p.Vie
	case SectionObservations:
		return p.Observations
	case SectionTransmissions:
		return p.Transmissions
	case SectionPrescriptions:
		return p.PrescriptionsAdd || p.PrescriptionsValidate
	case SectionDiagramme:
		return p.Diagramme
	case SectionPancarte:
		return p.Pancarte
	case SectionBiologie:
		return p.Biologie
	case SectionComptesRendus:
		return p.ComptesRendus
	default:
		return false
	}
}

// CanUseRoom reports whether the slot is reachable under this permission
// set. Students are restricted to their allowed rooms; archives are never
// room-scoped.
func (p Permissions) CanUseRoom(slotID string) bool {
	if !p.IsStudent {
		return true
	}
	if !dossier.IsChambreSlot(slotID) {
		return false
	}
	for _, room := range p.AllowedRooms {
		if dossier.ChambrePrefix+room == slotID {
			return true
		}
	}
	return false
}

// CanEditAny reports whether the set allows mutating anything at all; a
// fully read-only set makes every save a no-op.
func (p Permissions) CanEditAny() bool {
	return p.Header || p.Admin || p.Vie || p.Observations || p.Transmissions ||
		p.PrescriptionsAdd || p.PrescriptionsDelete || p.PrescriptionsValidate ||
		p.Diagramme || p.Pancarte || p.Biologie || p.ComptesRendus
}
