package models

import "time"

// Comentario is a client comment about a Servicio owned by another process.
type Comentario struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ServicioID int64     `gorm:"not null;index" json:"servicio_id"`
	ClienteID  int64     `gorm:"not null" json:"cliente_id"`
	Titulo     string    `gorm:"type:varchar(255)" json:"titulo"`
	Texto      string    `gorm:"type:text;not null" json:"texto"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Comentario) TableName() string {
	return "comentarios"
}
