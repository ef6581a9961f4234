package config

import (
	"errors"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default(t.TempDir())
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsEmptyDirectory(t *testing.T) {
	c := Default("")
	if err := c.Validate(); !errors.Is(err, ErrConfig) {
		t.Fatalf("Validate() = %v, want ErrConfig", err)
	}
}

func TestValidateRejectsLowSizeRatio(t *testing.T) {
	c := Default(t.TempDir())
	c.SizeRatio = 1
	if err := c.Validate(); !errors.Is(err, ErrConfig) {
		t.Fatalf("Validate() = %v, want ErrConfig", err)
	}
}

func TestValidateRejectsOutOfRangeFPR(t *testing.T) {
	c := Default(t.TempDir())
	c.FilterFalsePositiveRate = 1.5
	if err := c.Validate(); !errors.Is(err, ErrConfig) {
		t.Fatalf("Validate() = %v, want ErrConfig", err)
	}
}

func TestValidateRejectsTinyBlockSize(t *testing.T) {
	c := Default(t.TempDir())
	c.BlockSize = 10
	if err := c.Validate(); !errors.Is(err, ErrConfig) {
		t.Fatalf("Validate() = %v, want ErrConfig", err)
	}
}
