package ceras

import "reflect"

// TargetsRule selects which members of a type are serializable by
// default, before per-member overrides apply (spec §4.1 step 5).
// Go has no properties, so PublicProperties and
// PublicFieldsAndProperties select exactly the same members as
// PublicFields (exported fields). AllMembers also admits unexported
// fields, which ReadonlyFieldHandling then keeps or drops.
type TargetsRule uint8

const (
	PublicFields TargetsRule = iota
	PublicProperties
	PublicFieldsAndProperties
	AllMembers
)

// ReadonlyHandling controls how read-only (unexported or otherwise
// unsettable) members are treated.
type ReadonlyHandling uint8

const (
	ReadonlyExclude ReadonlyHandling = iota
	ReadonlyMembersOnly
	ReadonlyForcedOverwrite
)

// VersionToleranceMode toggles the schema formatter subsystem.
type VersionToleranceMode uint8

const (
	VersionToleranceDisabled VersionToleranceMode = iota
	VersionToleranceAutomaticEmbedded
)

// DelegateMode controls whether func-typed members may be
// serialized, and which kinds.
type DelegateMode uint8

const (
	DelegateOff DelegateMode = iota
	DelegateAllowStatic
	DelegateAllowInstance
)

// SizeLimits are policy bounds enforced on read, before any
// allocation proportional to a declared size (spec §4.5).
type SizeLimits struct {
	MaxStringLength        uint32
	MaxArrayElements       uint32
	MaxByteArrayLength     uint32
	MaxCollectionElements  uint32
}

func defaultSizeLimits() SizeLimits {
	return SizeLimits{
		MaxStringLength:       ^uint32(0),
		MaxArrayElements:      ^uint32(0),
		MaxByteArrayLength:    ^uint32(0),
		MaxCollectionElements: ^uint32(0),
	}
}

// FormatterResolverFunc is a user-installed resolver consulted before
// built-in formatters (spec §4.2 step 1).
type FormatterResolverFunc func(t reflect.Type) Formatter

// ExternalObjectResolverFunc and ResolveExternalObjectFunc are the
// hook types for handing values off to an external, identity-based
// store (spec §1, externalized roots). SerializerConfig stores them,
// but no formatter calls them: every value is written inline.
type ExternalObjectResolverFunc func(v reflect.Value) (id string, ok bool)
type ResolveExternalObjectFunc func(id string) (reflect.Value, bool)

// FirstTouchFunc runs exactly once per type, the first time the
// engine resolves a TypeConfig it was not explicitly given (spec
// §4.1 "usage lookup").
type FirstTouchFunc func(t reflect.Type, cfg *TypeConfig)

// DiscardObjectFunc is the hook type for releasing a pooled target
// object that is discarded instead of reused. SerializerConfig stores
// it, but the engine never calls it.
type DiscardObjectFunc func(v reflect.Value)

// SerializerConfig is the engine's configuration surface (spec
// §6.2). It is mutable only until the owning Serializer's first
// Serialize/Deserialize call; see (*Serializer).seal.
type SerializerConfig struct {
	KnownTypes                   []reflect.Type
	PreserveReferences            bool
	RespectNonSerializedAttribute bool
	VersionTolerance              VersionToleranceMode
	DefaultTargets                TargetsRule
	ReadonlyFieldHandling          ReadonlyHandling
	EmbedChecksum                  bool
	PersistTypeCache               bool
	SealTypesWhenUsingKnownTypes   bool
	SkipCompilerGeneratedFields    bool
	DelegateSerialization          DelegateMode
	UseReinterpretFormatter        bool
	Limits                         SizeLimits

	ExternalObjectResolver ExternalObjectResolverFunc
	OnExternalObject       ResolveExternalObjectFunc
	OnResolveFormatter     []FormatterResolverFunc
	onConfigNewType        FirstTouchFunc
	onConfigNewTypeSet     bool
	DiscardObjectMethod    DiscardObjectFunc
	TypeBinder             TypeBinder

	sealed bool
}

// Option configures a SerializerConfig at construction time.
type Option func(*SerializerConfig)

// NewConfig builds a SerializerConfig with the spec's documented
// defaults (§6.2), then applies opts in order.
func NewConfig(opts ...Option) *SerializerConfig {
	cfg := &SerializerConfig{
		PreserveReferences:            true,
		RespectNonSerializedAttribute: true,
		VersionTolerance:              VersionToleranceDisabled,
		DefaultTargets:                PublicFields,
		ReadonlyFieldHandling:         ReadonlyExclude,
		SealTypesWhenUsingKnownTypes:  true,
		SkipCompilerGeneratedFields:   true,
		DelegateSerialization:         DelegateOff,
		UseReinterpretFormatter:       true,
		Limits:                        defaultSizeLimits(),
		TypeBinder:                    NewReflectTypeBinder(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func WithKnownTypes(types ...reflect.Type) Option {
	return func(c *SerializerConfig) { c.KnownTypes = types }
}

func WithPreserveReferences(v bool) Option {
	return func(c *SerializerConfig) { c.PreserveReferences = v }
}

func WithVersionTolerance(mode VersionToleranceMode) Option {
	return func(c *SerializerConfig) { c.VersionTolerance = mode }
}

func WithDefaultTargets(rule TargetsRule) Option {
	return func(c *SerializerConfig) { c.DefaultTargets = rule }
}

func WithReadonlyFieldHandling(h ReadonlyHandling) Option {
	return func(c *SerializerConfig) { c.ReadonlyFieldHandling = h }
}

func WithEmbedChecksum(v bool) Option {
	return func(c *SerializerConfig) { c.EmbedChecksum = v }
}

func WithPersistTypeCache(v bool) Option {
	return func(c *SerializerConfig) { c.PersistTypeCache = v }
}

func WithSizeLimits(limits SizeLimits) Option {
	return func(c *SerializerConfig) { c.Limits = limits }
}

// WithUseReinterpretFormatter toggles the reinterpret-cast fast path
// for blittable structs (spec §4.2, §6.1). It has no effect on a type
// while VersionTolerance is enabled for it.
func WithUseReinterpretFormatter(v bool) Option {
	return func(c *SerializerConfig) { c.UseReinterpretFormatter = v }
}

func WithDelegateSerialization(mode DelegateMode) Option {
	return func(c *SerializerConfig) { c.DelegateSerialization = mode }
}

func WithTypeBinder(b TypeBinder) Option {
	return func(c *SerializerConfig) { c.TypeBinder = b }
}

func WithFormatterResolver(fn FormatterResolverFunc) Option {
	return func(c *SerializerConfig) { c.OnResolveFormatter = append(c.OnResolveFormatter, fn) }
}

// WithOnConfigNewType installs the first-touch hook. Single
// assignment: any second call fails fast via panic(*Error) at
// config-build time, matching the "mutation after seal" failure
// mode's Kind (spec §4.1). Passing the same function again is not
// accepted either; it panics like any other second call.
func WithOnConfigNewType(fn FirstTouchFunc) Option {
	return func(c *SerializerConfig) {
		if c.onConfigNewTypeSet {
			panic(newError(ConfigurationConflict, "OnConfigNewType already assigned"))
		}
		c.onConfigNewType = fn
		c.onConfigNewTypeSet = true
	}
}

func WithDiscardObjectMethod(fn DiscardObjectFunc) Option {
	return func(c *SerializerConfig) { c.DiscardObjectMethod = fn }
}

func WithExternalObjectResolver(resolve ExternalObjectResolverFunc, onExternal ResolveExternalObjectFunc) Option {
	return func(c *SerializerConfig) {
		c.ExternalObjectResolver = resolve
		c.OnExternalObject = onExternal
	}
}

// seal freezes the configuration. Called by Serializer before its
// first Serialize/Deserialize (spec §5 "Shared-resource policy").
func (c *SerializerConfig) seal() { c.sealed = true }

func (c *SerializerConfig) requireUnsealed(op string) {
	if c.sealed {
		panic(newError(ConfigurationConflict, "cannot %s after the serializer has sealed its configuration", op))
	}
}
