// Package catalog разрешает data services и функции по идентификатору.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shaiso/Conduit/internal/domain"
)

// ErrNotFound — дескриптор не зарегистрирован.
var ErrNotFound = errors.New("descriptor not found")

// Descriptor — адрес зарегистрированного data service или функции.
type Descriptor struct {
	App    string
	API    string
	Method string
}

// Path возвращает относительный адрес вызова "/<app><api>".
func (d Descriptor) Path() string {
	return "/" + d.App + d.API
}

// Catalog — поиск дескрипторов.
type Catalog interface {
	DataService(ctx context.Context, id string) (Descriptor, error)
	FaaS(ctx context.Context, id string) (Descriptor, error)
}

// Static — каталог в памяти. Потокобезопасен.
type Static struct {
	mu           sync.RWMutex
	dataServices map[string]Descriptor
	faas         map[string]Descriptor
}

// NewStatic создаёт пустой каталог.
func NewStatic() *Static {
	return &Static{
		dataServices: make(map[string]Descriptor),
		faas:         make(map[string]Descriptor),
	}
}

// FromDefinition создаёт каталог из секций dataServices и faas описания.
func FromDefinition(def *domain.Definition) *Static {
	c := NewStatic()
	for id, d := range def.DataServices {
		c.RegisterDataService(id, Descriptor{App: d.App, API: d.API})
	}
	for id, d := range def.FaaS {
		c.RegisterFaaS(id, Descriptor{App: d.App, API: d.API})
	}
	return c
}

// RegisterDataService регистрирует data service.
func (c *Static) RegisterDataService(id string, d Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataServices[id] = d
}

// RegisterFaaS регистрирует функцию.
func (c *Static) RegisterFaaS(id string, d Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faas[id] = d
}

// DataService возвращает дескриптор data service.
func (c *Static) DataService(_ context.Context, id string) (Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.dataServices[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: data service %s", ErrNotFound, id)
	}
	return d, nil
}

// FaaS возвращает дескриптор функции.
func (c *Static) FaaS(_ context.Context, id string) (Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.faas[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: faas %s", ErrNotFound, id)
	}
	return d, nil
}
