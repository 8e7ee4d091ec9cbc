package domain

// InvocationStatus — статус выполнения invocation.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → SUCCEEDED
//	                 ↘ SKIPPED (защита от рекурсии)
//	                 ↘ FAILED  (может быть retry → обратно в QUEUED)
type InvocationStatus string

const (
	// InvocationStatusQueued — invocation создан и ожидает выполнения.
	InvocationStatusQueued InvocationStatus = "QUEUED"

	// InvocationStatusRunning — активность выполняется.
	InvocationStatusRunning InvocationStatus = "RUNNING"

	// InvocationStatusSucceeded — активность завершилась без ошибки
	// (включая подавленные ошибки при выключенном debug mode).
	InvocationStatusSucceeded InvocationStatus = "SUCCEEDED"

	// InvocationStatusSkipped — активность не выполнялась из-за глубины каскада.
	InvocationStatusSkipped InvocationStatus = "SKIPPED"

	// InvocationStatusFailed — активность вернула ошибку хосту.
	InvocationStatusFailed InvocationStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s InvocationStatus) IsTerminal() bool {
	switch s {
	case InvocationStatusSucceeded, InvocationStatusSkipped, InvocationStatusFailed:
		return true
	default:
		return false
	}
}

// ParseInvocationStatus парсит строку в InvocationStatus.
// Пустая строка и неизвестные значения возвращают "".
func ParseInvocationStatus(s string) InvocationStatus {
	switch InvocationStatus(s) {
	case InvocationStatusQueued, InvocationStatusRunning, InvocationStatusSucceeded,
		InvocationStatusSkipped, InvocationStatusFailed:
		return InvocationStatus(s)
	default:
		return ""
	}
}
