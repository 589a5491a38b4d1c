package subsidy

// ErrorKind классифицирует причину неуспешной валидации заказа.
type ErrorKind string

// Стабильные идентификаторы видов ошибок. Значения входят в контракт API
// и используются фронтендом для выбора реакции (повтор, блокировка продажи).
const (
	KindNone              ErrorKind = ""
	KindConnectorInactive ErrorKind = "connector_inactive"
	KindProcessing        ErrorKind = "processing_error"
	KindTimeout           ErrorKind = "timeout"
	KindConnection        ErrorKind = "connection"
	KindRequest           ErrorKind = "request"
	KindValidation        ErrorKind = "validation_error"
	KindClient            ErrorKind = "client_error"
	KindServer            ErrorKind = "server_error"
	KindUnexpected        ErrorKind = "unexpected"
)

// IsTransport сообщает, относится ли ошибка к транспортному уровню
// (таймаут, отказ соединения, прочий сбой запроса).
func (k ErrorKind) IsTransport() bool {
	return k == KindTimeout || k == KindConnection || k == KindRequest
}

// Outcome — единственное значение, возвращаемое попыткой валидации:
// либо успех с нормализованными данными, либо отказ с видом ошибки.
type Outcome struct {
	OK         bool
	Data       *Result
	Message    string
	ErrorKind  ErrorKind
	StatusCode int
	RawBody    []byte
}

// Success создаёт успешный результат с данными субсидии.
func Success(data *Result, message string) Outcome {
	return Outcome{OK: true, Data: data, Message: message}
}

// Failure создаёт неуспешный результат с указанным видом ошибки.
func Failure(kind ErrorKind, message string) Outcome {
	return Outcome{OK: false, ErrorKind: kind, Message: message}
}
