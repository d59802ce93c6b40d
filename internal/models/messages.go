package models

// PatternValidarServicio is the request/response pattern answered by the servicio producer.
const PatternValidarServicio = "servicio.validar"

// ValidarServicioRequest asks whether a Servicio exists.
type ValidarServicioRequest struct {
	ServicioID int64 `json:"servicio_id"`
}

// ValidarServicioResponse answers a ValidarServicioRequest.
type ValidarServicioResponse struct {
	ServicioID int64 `json:"servicio_id"`
	Existe     bool  `json:"existe"`
}

// ServicioCreadoMessage is emitted on the internal bus after a Servicio commits.
// It is also the data object of the servicio.creado webhook envelope.
type ServicioCreadoMessage struct {
	ServicioID     int64  `json:"servicio_id"`
	NombreServicio string `json:"nombre_servicio"`
	Descripcion    string `json:"descripcion"`
	Duracion       int    `json:"duracion"`
	ProveedorID    *int64 `json:"proveedor_id"`
	CategoriaID    *int64 `json:"categoria_id"`
}

// ComentarioCreadoMessage is emitted on the internal bus after a Comentario commits.
type ComentarioCreadoMessage struct {
	ComentarioID   int64  `json:"comentario_id"`
	ServicioID     int64  `json:"servicio_id"`
	ClienteID      int64  `json:"cliente_id"`
	Titulo         string `json:"titulo"`
	Texto          string `json:"texto"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ComentarioEventData is the data object of the comentario.creado webhook envelope.
type ComentarioEventData struct {
	ComentarioID int64  `json:"comentario_id"`
	ServicioID   int64  `json:"servicio_id"`
	ClienteID    int64  `json:"cliente_id"`
	Titulo       string `json:"titulo"`
	Texto        string `json:"texto"`
}
