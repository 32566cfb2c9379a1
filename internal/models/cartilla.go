package models

// Provider tipos.
const (
	ProviderMedic      = "medic"
	ProviderDiagnostic = "diagnostic"
	ProviderUrgency    = "urgency"
	ProviderInpatient  = "inpatient"
	ProviderOdontology = "odontology"
	ProviderPharmacy   = "pharmacy"
	ProviderVaccine    = "vaccine"
)

type Province struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Nombre      string      `gorm:"uniqueIndex;not null" json:"nombre"`
	Localidades []Localidad `json:"-"`
}

type Localidad struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Nombre     string    `gorm:"index;not null" json:"nombre"`
	ProvinceID uint      `gorm:"index;not null" json:"provinceId"`
	Province   *Province `json:"province,omitempty"`
}

func (Localidad) TableName() string { return "localidades" }

type Specialty struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Nombre    string     `gorm:"index;not null" json:"nombre"`
	Tipo      string     `gorm:"index;not null" json:"tipo"`
	Providers []Provider `gorm:"many2many:provider_specialty" json:"-"`
}

type Provider struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Nombre      string      `gorm:"index;not null" json:"nombre"`
	Direccion   string      `json:"direccion"`
	Telefono    string      `json:"telefono"`
	LocalidadID uint        `gorm:"index;not null" json:"localidadId"`
	Tipo        string      `gorm:"index;not null" json:"tipo"`
	Institucion string      `json:"institucion"`
	Localidad   *Localidad  `json:"localidad,omitempty"`
	Specialties []Specialty `gorm:"many2many:provider_specialty" json:"specialties,omitempty"`
}

// ProviderPlan maps a provider to one covered plan tier
// (bronce, plata, oro, platino).
type ProviderPlan struct {
	ProviderID uint   `gorm:"primaryKey" json:"providerId"`
	Plan       string `gorm:"primaryKey;size:20" json:"plan"`
}

func (ProviderPlan) TableName() string { return "provider_plan" }
