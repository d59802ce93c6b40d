package models

import "time"

// Servicio is a service offering published by the servicio producer.
type Servicio struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	NombreServicio string    `gorm:"type:varchar(255);not null" json:"nombre_servicio"`
	Descripcion    string    `gorm:"type:text" json:"descripcion"`
	Duracion       int       `gorm:"not null" json:"duracion"`
	ProveedorID    *int64    `json:"proveedor_id"`
	CategoriaID    *int64    `json:"categoria_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Servicio) TableName() string {
	return "servicios"
}
