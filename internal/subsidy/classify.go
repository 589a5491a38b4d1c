package subsidy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// classifyTransportError сопоставляет ошибку транспортного уровня с видом
// ошибки исхода. Порядок проверок фиксирован: таймаут, отказ соединения,
// прочий сбой запроса.
func classifyTransportError(err error, timeoutSeconds int) Outcome {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return Failure(KindTimeout, fmt.Sprintf("API timeout after %d seconds", timeoutSeconds))
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH):
		return Failure(KindConnection, "cannot connect to payment API")
	default:
		return Failure(KindRequest, fmt.Sprintf("API request failed: %v", err))
	}
}

// classifyResponse превращает HTTP-ответ внешнего API в исход валидации.
// API v2 возвращает 200 даже при бизнес-отказах (недостаточный баланс,
// неизвестный товар), поэтому для 2xx дополнительно проверяется
// семантический статус в теле ответа.
func classifyResponse(statusCode int, body []byte) Outcome {
	if statusCode >= 200 && statusCode < 300 {
		var data map[string]any
		if err := json.Unmarshal(body, &data); err != nil {
			// 2xx без валидного JSON считается успехом без данных.
			return Success(nil, "payment validated successfully")
		}

		if rejected(data) {
			message := stringField(data, "message")
			if message == "" {
				message = "payment validation failed"
			}
			out := Failure(KindValidation, message)
			out.RawBody = body
			return out
		}

		result := extractResult(data)
		message := result.Message
		if message == "" {
			message = "payment validated successfully"
		}
		return Success(&result, message)
	}

	if statusCode >= 400 && statusCode < 500 {
		out := Failure(KindClient, errorMessage(body, fmt.Sprintf("client error: %d", statusCode)))
		out.StatusCode = statusCode
		return out
	}

	out := Failure(KindServer, errorMessage(body, fmt.Sprintf("server error: %d", statusCode)))
	out.StatusCode = statusCode
	return out
}

// rejected сообщает, содержит ли 2xx-тело бизнес-отказ.
func rejected(data map[string]any) bool {
	if stringField(data, "status") == "error" {
		return true
	}
	for _, key := range []string{"valide", "valid"} {
		if v, ok := data[key]; ok {
			if b, ok := v.(bool); ok && !b {
				return true
			}
		}
	}
	return false
}

// errorMessage достаёт текст ошибки из полей message/error тела ответа,
// иначе возвращает generic-сообщение с кодом.
func errorMessage(body []byte, fallback string) string {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return fallback
	}
	if msg := stringField(data, "message", "error"); msg != "" {
		return msg
	}
	return fallback
}
