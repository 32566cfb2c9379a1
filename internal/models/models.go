package models

import "time"

// Gestion estados.
const (
	GestionPendiente  = "pendiente"
	GestionEnProceso  = "en_proceso"
	GestionCompletada = "completada"
	GestionRechazada  = "rechazada"
)

// Factura estados.
const (
	FacturaPagada    = "Pagada"
	FacturaPendiente = "Pendiente"
)

// Plan tiers accepted on signup.
var PlanNames = []string{"Plan Bronce", "Plan Plata", "Plan Oro", "Plan Platino"}

// User is a portal member. Columns are snake_case in the store; the JSON tags
// are the camelCase names the frontend expects.
type User struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Name               string     `gorm:"not null;default:Usuario" json:"name"`
	Email              string     `gorm:"uniqueIndex;not null" json:"email"`
	EmailVerifiedAt    *time.Time `json:"emailVerifiedAt,omitempty"`
	PasswordHash       string     `gorm:"column:password;not null" json:"-"`
	DocumentNumber     *string    `gorm:"uniqueIndex" json:"documentNumber,omitempty"`
	PhoneNumber        string     `json:"phoneNumber,omitempty"`
	DateOfBirth        *time.Time `json:"dateOfBirth,omitempty"`
	MaritalStatus      string     `json:"maritalStatus,omitempty"`
	CBU                string     `gorm:"column:cbu" json:"cbu,omitempty"`
	AssociateNumber    string     `json:"associateNumber,omitempty"`
	Plan               string     `json:"plan,omitempty"`
	PasswordUpdatedAt  *time.Time `json:"passwordUpdatedAt,omitempty"`
	IsAdmin            bool       `gorm:"not null;default:false" json:"isAdmin"`
	DigitalToken       *string    `gorm:"size:3" json:"digitalToken,omitempty"`
	DigitalTokenActive bool       `gorm:"not null;default:false" json:"digitalTokenActive"`
	Address            *Address   `json:"address,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Address is a user's single registered address.
type Address struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"userId"`
	Street    string    `json:"street"`
	Number    int       `json:"number"`
	Floor     string    `json:"floor"`
	Apartment string    `json:"apartment"`
	City      string    `json:"city"`
	Province  string    `json:"province"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Gestion is a member-submitted case, optionally with one stored document.
// The document lives on disk; only its relative path is kept here.
type Gestion struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index:idx_gestiones_user_estado;not null" json:"userId"`
	Estado       string    `gorm:"index:idx_gestiones_user_estado;not null" json:"estado"`
	Fecha        time.Time `gorm:"index;not null" json:"fecha"`
	Nombre       string    `gorm:"not null" json:"nombre"`
	DocumentPath string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Gestion) TableName() string { return "gestiones" }

// HasDocument reports whether a file is attached to the gestion.
func (g *Gestion) HasDocument() bool { return g.DocumentPath != "" }

// Factura is an invoice for one billing period ("YYYY-MM").
type Factura struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"index:idx_facturas_user_estado;not null" json:"userId"`
	Estado           string     `gorm:"index:idx_facturas_user_estado;not null" json:"estado"`
	Periodo          string     `gorm:"index;not null" json:"periodo"`
	Monto            *float64   `gorm:"type:decimal(10,2)" json:"monto,omitempty"`
	FechaVencimiento *time.Time `gorm:"type:date" json:"fechaVencimiento,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (Factura) TableName() string { return "facturas" }
