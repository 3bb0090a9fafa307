package validation

import (
	"errors"
	"testing"
)

type inner struct {
	Port int `validate:"min=1,max=65535"`
}

type outer struct {
	Name  string `validate:"required"`
	Inner inner
}

func TestValidateStruct(t *testing.T) {
	if err := ValidateStruct(outer{Name: "ok", Inner: inner{Port: 80}}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	err := ValidateStruct(outer{Inner: inner{Port: 70000}})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected 2 failures, got %+v", verr.Fields)
	}
	if verr.Fields[0].Field != "Name" || verr.Fields[0].Tag != "required" {
		t.Fatalf("unexpected first failure %+v", verr.Fields[0])
	}
	if verr.Fields[1].Field != "Inner.Port" || verr.Fields[1].Param != "65535" {
		t.Fatalf("unexpected second failure %+v", verr.Fields[1])
	}
}
