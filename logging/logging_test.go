package logging

import "testing"

func TestWithFields(t *testing.T) {
	logger := New().WithFields(map[string]interface{}{"context": "contextvalue"})

	fields := logger.GetFields()
	if fields["context"] != "contextvalue" {
		t.Fatal("logger did not carry the configured field")
	}
}

func TestWithFieldsOverrides(t *testing.T) {
	logger := New().
		WithFields(map[string]interface{}{"context": "contextvalue"}).
		WithFields(map[string]interface{}{"context": "changedcontextvalue"})

	if v := logger.GetFields()["context"]; v != "changedcontextvalue" {
		t.Fatalf("expected overridden field value, got %v", v)
	}
}

func TestWithFieldsMerges(t *testing.T) {
	logger := New().
		WithFields(map[string]interface{}{"context": "contextvalue"}).
		WithFields(map[string]interface{}{"anothercontext": "anothercontextvalue"})

	fields := logger.GetFields()
	if fields["context"] != "contextvalue" {
		t.Fatal("logger lost the first field on merge")
	}
	if fields["anothercontext"] != "anothercontextvalue" {
		t.Fatal("logger did not carry the second field")
	}
}

func TestSetLevel(t *testing.T) {
	logger := New()
	logger.SetLevel(Error)
	if logger.GetLevel() != Error {
		t.Fatalf("expected level Error, got %v", logger.GetLevel())
	}
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()
	logger.Debug("this never panics even with %d args", 3)
	logger.SetLevel(Warn)
	if logger.GetLevel() != Warn {
		t.Fatalf("expected level Warn, got %v", logger.GetLevel())
	}

	withField := logger.WithFields(map[string]interface{}{"k": "v"})
	if withField.GetFields()["k"] != "v" {
		t.Fatal("no-op logger did not carry the configured field")
	}
}
