package constants

// Outbound message bodies. Keep them plain text: WhatsApp renders them verbatim.
const (
	ReplyConfirmed        = "Gracias por confirmar. Sus datos han sido registrados."
	ReplyNothingToConfirm = "No hay datos pendientes de confirmación. Por favor, envíe una foto o PDF de su documento."
	ReplyCorrection       = "Por favor, ingrese manualmente sus datos: Nombre, Apellidos, RUT."
	ReplyUnknownCommand   = "Comando no reconocido. Por favor, responda con 'Sí' o 'No', o envíe un comando válido."
	ReplyListHeader       = "Actualmente, los guardias registrados son:"
	ReplyListEmpty        = "Actualmente no hay guardias registrados."
	ReplyProcessingFailed = "No pudimos procesar el archivo enviado. Por favor, intente nuevamente con una foto nítida o un PDF."
	ConfirmQuestion       = "¿Es correcto? (Sí/No)"
	MissingValue          = "N/A"

	StatusProcessed = "Archivo procesado"
	StatusReplied   = "Mensaje recibido"
	StatusFailed    = "Error al procesar el mensaje"
	Greeting        = "¡Hola, mundo! La aplicación se desplegó correctamente."
)

// ListCommandToken triggers the list intent when present anywhere in a reply.
const ListCommandToken = "registrados"
