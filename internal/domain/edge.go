package domain

import "strings"

// EdgeDelimiter: разделитель source и target в дескрипторе ребра.
const EdgeDelimiter = ":"

// Edge: ребро, полученное разбором дескриптора "<source>:<target>".
//
// Самостоятельной сущностью не является: рёбра живут только
// внутри Node.Outputs.
type Edge struct {
	Source string
	Target string
}

// ParseEdge разбирает дескриптор ребра.
//
// Берутся первые две части после разбиения по ":" (остальные игнорируются).
// Дескриптор без разделителя считается некорректным: ok=false.
func ParseEdge(descriptor string) (Edge, bool) {
	parts := strings.Split(descriptor, EdgeDelimiter)
	if len(parts) < 2 {
		return Edge{}, false
	}
	return Edge{Source: parts[0], Target: parts[1]}, true
}

// FormatEdge собирает дескриптор ребра.
func FormatEdge(source, target string) string {
	return source + EdgeDelimiter + target
}

// String возвращает дескриптор ребра.
func (e Edge) String() string {
	return FormatEdge(e.Source, e.Target)
}
