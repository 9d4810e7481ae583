package vm

import (
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// Atom is the ID of an interned atom.
type Atom uint32

// Well-known atoms. NewAtomTable interns them in this order so their IDs are
// fixed for every table.
const (
	AtomFalse Atom = iota
	AtomTrue
	AtomOk
	AtomError
	AtomExit
	AtomThrow
	AtomNormal
	AtomBadarg
	AtomUndef
	AtomSystemLimit
)

var wellKnownAtoms = []string{
	"false", "true", "ok", "error", "exit", "throw", "normal", "badarg", "undef", "system_limit",
}

// ---------------------------------------------------------------------------
// AtomTable: Interned atoms
// ---------------------------------------------------------------------------

// AtomTable interns atom names to unique IDs. It is shared by every process
// of a State and safe for concurrent use.
type AtomTable struct {
	mu     sync.RWMutex
	byName map[string]Atom
	byID   []string
}

// NewAtomTable creates an atom table holding the well-known atoms.
func NewAtomTable() *AtomTable {
	at := &AtomTable{
		byName: make(map[string]Atom),
		byID:   make([]string, 0, 256),
	}
	for _, name := range wellKnownAtoms {
		at.Intern(name)
	}
	return at
}

// Intern returns the ID for an atom, creating a new one if needed.
func (at *AtomTable) Intern(name string) Atom {
	at.mu.RLock()
	if id, ok := at.byName[name]; ok {
		at.mu.RUnlock()
		return id
	}
	at.mu.RUnlock()

	at.mu.Lock()
	defer at.mu.Unlock()

	// Double-check after acquiring write lock
	if id, ok := at.byName[name]; ok {
		return id
	}

	id := Atom(len(at.byID))
	at.byName[name] = id
	at.byID = append(at.byID, name)
	return id
}

// Lookup returns the ID for an atom, or false if it was never interned.
func (at *AtomTable) Lookup(name string) (Atom, bool) {
	at.mu.RLock()
	defer at.mu.RUnlock()
	id, ok := at.byName[name]
	return id, ok
}

// Name returns the atom name for an ID, or "" if invalid.
func (at *AtomTable) Name(id Atom) string {
	at.mu.RLock()
	defer at.mu.RUnlock()

	if int(id) >= len(at.byID) {
		return ""
	}
	return at.byID[id]
}

// Len returns the number of interned atoms.
func (at *AtomTable) Len() int {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return len(at.byID)
}

// Value interns name and returns it as an atom Value.
func (at *AtomTable) Value(name string) Value {
	return FromAtom(at.Intern(name))
}

// ---------------------------------------------------------------------------
// Printing
// ---------------------------------------------------------------------------

// Format renders v in Erlang term syntax.
func (at *AtomTable) Format(v Value) string {
	var sb strings.Builder
	formatTerm(&sb, v, at.Name)
	return sb.String()
}

// formatTerm writes v to sb. Without atomName only the well-known atoms print
// by name; the rest print as #atomN.
func formatTerm(sb *strings.Builder, v Value, atomName func(Atom) string) {
	switch v.Kind() {
	case KindFloat:
		f := v.Float64()
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		sb.WriteString(s)
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.SmallInt(), 10))
	case KindAtom:
		switch id := v.Atom(); {
		case atomName != nil:
			sb.WriteString(quoteAtom(atomName(id)))
		case int(id) < len(wellKnownAtoms):
			sb.WriteString(wellKnownAtoms[id])
		default:
			sb.WriteString("#atom")
			sb.WriteString(strconv.FormatUint(uint64(id), 10))
		}
	case KindPID:
		sb.WriteString("<0.")
		sb.WriteString(strconv.FormatUint(uint64(v.PID()), 10))
		sb.WriteString(".0>")
	case KindNone:
		sb.WriteString("#none")
	case KindNil:
		sb.WriteString("[]")
	case KindCons:
		sb.WriteByte('[')
		for first := true; ; first = false {
			c := v.Cons()
			if !first {
				sb.WriteByte(',')
			}
			formatTerm(sb, c.Head, atomName)
			v = c.Tail
			if v.IsCons() {
				continue
			}
			if !v.IsNil() {
				sb.WriteByte('|')
				formatTerm(sb, v, atomName)
			}
			break
		}
		sb.WriteByte(']')
	case KindTuple:
		sb.WriteByte('{')
		for i, e := range v.Tuple().Elems {
			if i > 0 {
				sb.WriteByte(',')
			}
			formatTerm(sb, e, atomName)
		}
		sb.WriteByte('}')
	case KindBinary:
		data := v.Binary().Data
		sb.WriteString("<<")
		if isPrintable(data) {
			sb.WriteString(strconv.Quote(string(data)))
		} else {
			for i, b := range data {
				if i > 0 {
					sb.WriteByte(',')
				}
				sb.WriteString(strconv.Itoa(int(b)))
			}
		}
		sb.WriteString(">>")
	}
}

func quoteAtom(name string) string {
	if name == "" {
		return "''"
	}
	for i, r := range name {
		if i == 0 && !unicode.IsLower(r) {
			return "'" + name + "'"
		}
		if r != '_' && r != '@' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "'" + name + "'"
		}
	}
	return name
}

func isPrintable(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}
