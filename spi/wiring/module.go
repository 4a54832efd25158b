/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wiring

import (
	"github.com/go-errors/errors"
	"github.com/samber/do"
	"github.com/samber/lo"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// PostConstructable services are called once after construction
type PostConstructable interface {
	PostConstruct() error
}

type ProvideOption interface {
	apply(binding *binding)
}

type provideOptionFunc func(binding *binding)

func (f provideOptionFunc) apply(binding *binding) {
	f(binding)
}

// ForceInitialization constructs the service eagerly when the
// container is created instead of on first use
func ForceInitialization() ProvideOption {
	return provideOptionFunc(func(binding *binding) {
		binding.eager = true
	})
}

// Module is a named set of constructors and invocations. Later
// modules override services of the same type provided earlier.
type Module interface {
	Name() string
	// Provide registers a constructor. The constructor's parameters
	// are resolved by type, its first return value is the provided
	// service, an optional second return value must be an error.
	Provide(constructor any, options ...ProvideOption)
	// MayProvide is Provide, ignoring nil constructors
	MayProvide(constructor any, options ...ProvideOption)
	// Invoke registers a function called after all modules
	// provided their services
	Invoke(fn any)
	register(injector *do.Injector)
	initialize(injector *do.Injector) error
}

func DefineModule(name string, definer func(module Module)) Module {
	m := &module{
		name: name,
	}
	definer(m)
	return m
}

type binding struct {
	serviceName string
	eager       bool
	provider    do.Provider[any]
	invoker     func(injector *do.Injector) error
}

type module struct {
	name     string
	bindings []*binding
}

func (m *module) Name() string {
	return m.name
}

func (m *module) Provide(constructor any, options ...ProvideOption) {
	fn, t := mustFunction(constructor)
	if t.NumOut() == 0 || t.NumOut() > 2 {
		panic(errors.Errorf("constructor %s must return 1 or 2 values, returns %d", t, t.NumOut()))
	}
	if t.NumOut() == 2 && !t.Out(1).ConvertibleTo(errorType) {
		panic(errors.Errorf("second return value of constructor %s must be an error", t))
	}

	b := &binding{
		serviceName: serviceName(t.Out(0)),
	}
	b.provider = func(injector *do.Injector) (any, error) {
		results, err := call(injector, fn, t)
		if err != nil {
			return nil, err
		}
		service := results[0].Interface()
		if postConstructable, ok := service.(PostConstructable); ok {
			if err := postConstructable.PostConstruct(); err != nil {
				return nil, err
			}
		}
		return service, nil
	}

	for _, option := range options {
		option.apply(b)
	}
	m.bindings = append(m.bindings, b)
}

func (m *module) MayProvide(constructor any, options ...ProvideOption) {
	if constructor == nil || reflect.ValueOf(constructor).IsNil() {
		return
	}
	m.Provide(constructor, options...)
}

func (m *module) Invoke(fn any) {
	v, t := mustFunction(fn)
	if t.NumOut() > 1 || (t.NumOut() == 1 && !t.Out(0).ConvertibleTo(errorType)) {
		panic(errors.Errorf("invoked function %s may only return an error", t))
	}

	m.bindings = append(m.bindings, &binding{
		invoker: func(injector *do.Injector) error {
			_, err := call(injector, v, t)
			return err
		},
	})
}

func (m *module) register(injector *do.Injector) {
	for _, b := range m.bindings {
		if b.provider == nil {
			continue
		}
		if lo.Contains(injector.ListProvidedServices(), b.serviceName) {
			do.OverrideNamed(injector, b.serviceName, b.provider)
		} else {
			do.ProvideNamed(injector, b.serviceName, b.provider)
		}
	}
}

func (m *module) initialize(injector *do.Injector) error {
	for _, b := range m.bindings {
		if b.invoker != nil {
			if err := b.invoker(injector); err != nil {
				return err
			}
		}
		if b.eager {
			if _, err := do.InvokeNamed[any](injector, b.serviceName); err != nil {
				return err
			}
		}
	}
	return nil
}

func serviceName(t reflect.Type) string {
	return t.String()
}

func mustFunction(fn any) (reflect.Value, reflect.Type) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		panic(errors.Errorf("type %v is not a function", t))
	}
	return reflect.ValueOf(fn), t
}

// call resolves the function's parameters from the injector,
// calls it and splits off a trailing error result
func call(injector *do.Injector, fn reflect.Value, t reflect.Type) ([]reflect.Value, error) {
	params := make([]reflect.Value, t.NumIn())
	for i := range params {
		paramType := t.In(i)
		param, err := do.InvokeNamed[any](injector, serviceName(paramType))
		if err != nil {
			return nil, err
		}
		if param == nil {
			params[i] = reflect.Zero(paramType)
		} else {
			params[i] = reflect.ValueOf(param)
		}
	}

	results := fn.Call(params)
	if n := len(results); n > 0 && t.Out(n-1) == errorType {
		if errValue := results[n-1]; !errValue.IsNil() {
			return nil, errValue.Interface().(error)
		}
		results = results[:n-1]
	}
	return results, nil
}
