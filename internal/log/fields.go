package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldBackend   = "backend"
	FieldKey       = "key"
	FieldRevision  = "revision"
	FieldExpenseID = "expense_id"
	FieldCategory  = "category"
	FieldCount     = "count"
	FieldSkipped   = "skipped"
	FieldFile      = "file"
	FieldRow       = "row"
	FieldDuration  = "duration_ms"
	FieldAttempt   = "attempt"
)

// Component names
const (
	ComponentApp     = "app"
	ComponentStore   = "store"
	ComponentKV      = "kv"
	ComponentStorage = "storage"
	ComponentCache   = "cache"
	ComponentBackend = "backend"
	ComponentCSV     = "csv"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
)

// Operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpHydrate  = "hydrate"
	OpPersist  = "persist"
	OpImport   = "import"
	OpExport   = "export"
	OpSync     = "sync"
	OpNotify   = "notify"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields builds structured log attributes. Fields keep the order they
// were first added in, so log lines for the same event always read alike.
type LogFields []field

type field struct {
	key   string
	value any
}

func NewFields() LogFields {
	return make(LogFields, 0, 4)
}

// set replaces the value of an existing key or appends a new one.
func (f LogFields) set(key string, value any) LogFields {
	for i := range f {
		if f[i].key == key {
			f[i].value = value
			return f
		}
	}
	return append(f, field{key: key, value: value})
}

// Get returns the value stored under key.
func (f LogFields) Get(key string) (any, bool) {
	for _, fl := range f {
		if fl.key == key {
			return fl.value, true
		}
	}
	return nil, false
}

func (f LogFields) WithComponent(component string) LogFields {
	return f.set(FieldComponent, component)
}

func (f LogFields) WithError(err error) LogFields {
	if err == nil {
		return f
	}
	return f.set(FieldError, err.Error())
}

func (f LogFields) WithOperation(op string) LogFields {
	return f.set(FieldOperation, op)
}

// WithSnapshot adds the key and revision of a persisted snapshot.
func (f LogFields) WithSnapshot(key string, revision int64) LogFields {
	return f.set(FieldKey, key).set(FieldRevision, revision)
}

func (f LogFields) WithExpense(id string, category string) LogFields {
	return f.set(FieldExpenseID, id).set(FieldCategory, category)
}

// ToSlice flattens the fields into slog key/value pairs, in insertion order.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for _, fl := range f {
		slice = append(slice, fl.key, fl.value)
	}
	return slice
}
