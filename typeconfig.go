package ceras

import (
	"reflect"
	"sync"
)

// TypeConfig is the per-type serialization policy described in spec
// §3. Once a formatter has been compiled against it (sealed == true)
// further mutation is rejected with ConfigurationConflict.
type TypeConfig struct {
	Type                reflect.Type
	DefaultTargets      TargetsRule
	ReadonlyHandling    ReadonlyHandling
	SkipCompilerGen     bool
	ShouldSerializeMember func(reflect.StructField) bool

	overrides map[string]*memberOverride
	sealed    bool
}

func newTypeConfig(t reflect.Type, cfg *SerializerConfig) *TypeConfig {
	return &TypeConfig{
		Type:             t,
		DefaultTargets:   cfg.DefaultTargets,
		ReadonlyHandling: cfg.ReadonlyFieldHandling,
		SkipCompilerGen:  cfg.SkipCompilerGeneratedFields,
		overrides:        make(map[string]*memberOverride),
	}
}

func (c *TypeConfig) override(fieldName string) *memberOverride {
	o, ok := c.overrides[fieldName]
	if !ok {
		o = &memberOverride{}
		c.overrides[fieldName] = o
	}
	return o
}

// Include forces fieldName to participate in serialization
// regardless of the default-targets rule.
func (c *TypeConfig) Include(fieldName string) *TypeConfig {
	c.requireUnsealed()
	t := true
	c.override(fieldName).include = &t
	return c
}

// Exclude forces fieldName out of serialization.
func (c *TypeConfig) Exclude(fieldName string) *TypeConfig {
	c.requireUnsealed()
	f := false
	c.override(fieldName).include = &f
	return c
}

// Name sets fieldName's persistent name, with alt as prior names
// used only for read-side reconciliation (spec §4.1, "alternative
// names").
func (c *TypeConfig) Name(fieldName, persistentName string, alt ...string) *TypeConfig {
	c.requireUnsealed()
	o := c.override(fieldName)
	o.persistentName = persistentName
	o.alternateNames = alt
	return c
}

// Formatter pins an explicit Formatter for fieldName, bypassing
// FormatterRegistry resolution for that member.
func (c *TypeConfig) Formatter(fieldName string, f Formatter) *TypeConfig {
	c.requireUnsealed()
	c.override(fieldName).formatter = f
	return c
}

func (c *TypeConfig) requireUnsealed() {
	if c.sealed {
		panic(newError(ConfigurationConflict, "TypeConfig for %s is sealed", c.Type))
	}
}

func (c *TypeConfig) seal() { c.sealed = true }

// TypeConfigRegistry resolves, for each runtime type, its TypeConfig
// and its compiled list of selected members (spec §4.1).
type TypeConfigRegistry struct {
	cfg *SerializerConfig

	mu      sync.Mutex
	configs map[reflect.Type]*TypeConfig
	touched map[reflect.Type]bool
}

func newTypeConfigRegistry(cfg *SerializerConfig) *TypeConfigRegistry {
	return &TypeConfigRegistry{
		cfg:     cfg,
		configs: make(map[reflect.Type]*TypeConfig),
		touched: make(map[reflect.Type]bool),
	}
}

// ConfigType is the "configuration lookup": returns a mutable
// TypeConfig, creating it from defaults if absent, without firing
// the first-touch callback.
func (r *TypeConfigRegistry) ConfigType(t reflect.Type) *TypeConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tc, ok := r.configs[t]; ok {
		return tc
	}
	tc := newTypeConfig(t, r.cfg)
	r.configs[t] = tc
	return tc
}

// usageLookup returns a TypeConfig, creating it if absent and firing
// the first-touch callback exactly once before the config is used by
// a formatter (spec §4.1 "Usage lookup").
func (r *TypeConfigRegistry) usageLookup(t reflect.Type) *TypeConfig {
	r.mu.Lock()
	tc, existed := r.configs[t]
	if !existed {
		tc = newTypeConfig(t, r.cfg)
		r.configs[t] = tc
	}
	alreadyTouched := r.touched[t]
	r.touched[t] = true
	r.mu.Unlock()

	if !existed && !alreadyTouched && r.cfg.onConfigNewType != nil {
		r.cfg.onConfigNewType(t, tc)
	}
	return tc
}

// selectedMember is one member chosen by the precedence algorithm in
// spec §4.1, with its resolved persistent name and alternates.
type selectedMember struct {
	descriptor     *memberDescriptor
	persistentName string
	alternateNames []string
	formatter      Formatter // nil => resolve via FormatterRegistry
}

// SelectMembers runs the spec §4.1 member-selection algorithm for t
// and returns the selected members in declaration order, with the
// members of embedded structs before the embedding type's own (see
// walkFields). The TypeConfig is sealed from this point on.
func (r *TypeConfigRegistry) SelectMembers(t reflect.Type) []selectedMember {
	tc := r.usageLookup(t)
	tc.seal()
	var out []selectedMember
	walkFields(t, nil, func(f reflect.StructField, index []int) {
		if tc.SkipCompilerGen && isCompilerGenerated(f) {
			return
		}
		opts, hasTag := parseTag(f.Tag)

		// Step 1: explicit per-member override wins outright.
		if ov, ok := tc.overrides[f.Name]; ok && ov.include != nil {
			if !*ov.include {
				return
			}
		} else if tc.ShouldSerializeMember != nil {
			// Step 2.
			if !tc.ShouldSerializeMember(f) {
				return
			}
		} else if hasTag && (opts.include || opts.exclude) {
			// Step 3 (member-level attribute, modeled as a struct tag).
			if opts.exclude && !opts.include {
				return
			}
		} else {
			// Steps 4-5: no type-level targeting attribute concept in
			// Go, so DefaultTargets decides directly.
			if tc.DefaultTargets != AllMembers && !isExported(f) {
				return
			}
		}

		name := f.Name
		var alt []string
		if ov, ok := tc.overrides[f.Name]; ok && ov.persistentName != "" {
			name = ov.persistentName
			alt = ov.alternateNames
		} else if hasTag && opts.name != "" {
			name = opts.name
			alt = opts.alt
		}

		readonly := !isExported(f)
		if readonly && tc.ReadonlyHandling == ReadonlyExclude {
			return
		}

		desc := &memberDescriptor{declaringField: f, index: append([]int{}, index...), declaredType: f.Type, readonly: readonly}
		if ov, ok := tc.overrides[f.Name]; ok {
			desc.overrideFormatter = ov.formatter
		}

		out = append(out, selectedMember{descriptor: desc, persistentName: name, alternateNames: alt, formatter: desc.overrideFormatter})
	})
	return out
}

// walkFields performs a depth-first walk of t's fields, recursing into
// every anonymous (embedded) struct field before visiting t's own
// fields, so that base-type members are visited before the derived
// type's own (spec §4.1 closing paragraph: "base classes before
// derived"). Within each group, fields keep declaration order.
func walkFields(t reflect.Type, prefix []int, visit func(reflect.StructField, []int)) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.Anonymous {
			walkFields(f.Type, append(append([]int{}, prefix...), i), visit)
		}
	}
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); !f.Anonymous {
			visit(f, append(append([]int{}, prefix...), i))
		}
	}
}
