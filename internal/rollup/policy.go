package rollup

// ErrorPolicy определяет, что делать с ошибками разрешения родителя и записи результата.
type ErrorPolicy int

const (
	// PolicySuppress — ошибка проглатывается, запуск завершается без изменений.
	PolicySuppress ErrorPolicy = iota

	// PolicySurface — ошибка возвращается хосту как HostError.
	PolicySurface
)

// PolicyFor возвращает политику для флага debug mode.
func PolicyFor(debugMode bool) ErrorPolicy {
	if debugMode {
		return PolicySurface
	}
	return PolicySuppress
}

// String возвращает имя политики.
func (p ErrorPolicy) String() string {
	if p == PolicySurface {
		return "surface"
	}
	return "suppress"
}
