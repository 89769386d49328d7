package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conduit/internal/domain"
)

// ErrInvalidDefinition — файл описания не разбирается или не проходит проверку.
var ErrInvalidDefinition = errors.New("invalid flow definition")

// LoadDefinition читает описание flows из файла.
func LoadDefinition(path string) (*domain.Definition, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path is empty", ErrInvalidDefinition)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}

	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// ParseDefinition разбирает описание flows из YAML или JSON.
//
// Проверяет только структуру (обязательные поля, типы стадий);
// ссылки между стадиями и flows проверяет engine.Parse.
func ParseDefinition(data []byte) (*domain.Definition, error) {
	var def domain.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	if err := validate.Struct(&def); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDefinition, describe(err))
	}

	return &def, nil
}
