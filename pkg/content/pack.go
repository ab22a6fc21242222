// Package content validates, normalizes, and digests raw content packs into
// the frozen NormalizedContentPack the rest of the simulation core consumes.
package content

import (
	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/formula"
)

// LocalizedText pairs a mandatory default string with optional per-locale
// overrides.
type LocalizedText struct {
	Default  string            `yaml:"default" validate:"required"`
	Variants map[string]string `yaml:"variants,omitempty"`
}

// ResourceCategory tags a Resource's role in the economy.
type ResourceCategory string

const (
	ResourceCategoryPrimary    ResourceCategory = "primary"
	ResourceCategoryPrestige   ResourceCategory = "prestige"
	ResourceCategoryAutomation ResourceCategory = "automation"
	ResourceCategoryCurrency   ResourceCategory = "currency"
	ResourceCategoryMisc       ResourceCategory = "misc"
)

// Resource is the raw, pre-validation definition of one economy resource.
// Capacity of nil means unbounded (infinite).
type Resource struct {
	ID                  string             `yaml:"id" validate:"required"`
	Name                LocalizedText      `yaml:"name" validate:"required"`
	Category            ResourceCategory   `yaml:"category" validate:"required,oneof=primary prestige automation currency misc"`
	Tier                int                `yaml:"tier" validate:"min=1"`
	StartAmount         float64            `yaml:"startAmount" validate:"min=0"`
	Capacity            *float64           `yaml:"capacity,omitempty"`
	Unlocked            bool               `yaml:"unlocked"`
	Visible             bool               `yaml:"visible"`
	UnlockCondition     *condition.Condition `yaml:"unlockCondition,omitempty"`
	VisibilityCondition *condition.Condition `yaml:"visibilityCondition,omitempty"`
	Order               int                `yaml:"order"`
	DirtyTolerance      *float64           `yaml:"dirtyTolerance,omitempty"`
}

// ResourceFlow is a (resourceId, rate) pair used in Generator production and
// consumption lists.
type ResourceFlow struct {
	ResourceID string          `yaml:"resourceId" validate:"required"`
	Rate       formula.Formula `yaml:"rate"`
}

// ResourceCost is a (resourceId, amount) pair used in multi-currency
// purchase definitions.
type ResourceCost struct {
	ResourceID string          `yaml:"resourceId" validate:"required"`
	Amount     formula.Formula `yaml:"amount"`
}

// PurchaseCost describes how a generator or upgrade's purchase price scales.
// Exactly one of the single-currency fields (CurrencyID/CostCurve) or the
// multi-currency Costs list is populated.
type PurchaseCost struct {
	CurrencyID     string          `yaml:"currencyId,omitempty"`
	CostMultiplier float64         `yaml:"costMultiplier" validate:"min=0"`
	CostCurve      formula.Formula `yaml:"costCurve"`
	Costs          []ResourceCost  `yaml:"costs,omitempty"`
}

// Generator is the raw definition of a production building/unit.
type Generator struct {
	ID                  string               `yaml:"id" validate:"required"`
	Name                LocalizedText        `yaml:"name" validate:"required"`
	Produces            []ResourceFlow       `yaml:"produces,omitempty"`
	Consumes            []ResourceFlow       `yaml:"consumes,omitempty"`
	Purchase            PurchaseCost         `yaml:"purchase"`
	InitialLevel        int                  `yaml:"initialLevel" validate:"min=0"`
	MaxLevel            *int                 `yaml:"maxLevel,omitempty"`
	BaseUnlock          condition.Condition  `yaml:"baseUnlock"`
	VisibilityCondition *condition.Condition `yaml:"visibilityCondition,omitempty"`
}

// UpgradeTargetKind tags which entity kind an upgrade target names.
type UpgradeTargetKind string

const (
	UpgradeTargetResource   UpgradeTargetKind = "resource"
	UpgradeTargetGenerator  UpgradeTargetKind = "generator"
	UpgradeTargetAutomation UpgradeTargetKind = "automation"
	UpgradeTargetGlobal     UpgradeTargetKind = "global"
)

// UpgradeTarget names what an upgrade effect applies to.
type UpgradeTarget struct {
	Kind UpgradeTargetKind `yaml:"kind" validate:"required,oneof=resource generator automation global"`
	ID   string            `yaml:"id,omitempty"`
}

// UpgradeEffectKind tags an Upgrade effect's variant.
type UpgradeEffectKind string

const (
	EffectModifyResourceRate        UpgradeEffectKind = "modifyResourceRate"
	EffectModifyGeneratorRate       UpgradeEffectKind = "modifyGeneratorRate"
	EffectModifyGeneratorConsumption UpgradeEffectKind = "modifyGeneratorConsumption"
	EffectModifyGeneratorCost       UpgradeEffectKind = "modifyGeneratorCost"
	EffectModifyResourceCapacity UpgradeEffectKind = "modifyResourceCapacity"
	EffectUnlockResource         UpgradeEffectKind = "unlockResource"
	EffectUnlockGenerator        UpgradeEffectKind = "unlockGenerator"
	EffectUnlockAutomation       UpgradeEffectKind = "unlockAutomation"
	EffectGrantFlag              UpgradeEffectKind = "grantFlag"
	EffectSetDirtyTolerance      UpgradeEffectKind = "setDirtyTolerance"
)

// UpgradeEffect is a tagged-union effect an Upgrade applies once owned.
type UpgradeEffect struct {
	Kind       UpgradeEffectKind `yaml:"kind" validate:"required"`
	TargetID   string            `yaml:"targetId,omitempty"`
	Multiplier float64           `yaml:"multiplier,omitempty"`
	Additive   float64           `yaml:"additive,omitempty"`
	FlagValue  bool              `yaml:"flagValue,omitempty"`
	Tolerance  float64           `yaml:"tolerance,omitempty"`
}

// RepeatablePolicy bounds a repeatable upgrade's purchase count and cost
// growth.
type RepeatablePolicy struct {
	MaxPurchases *int            `yaml:"maxPurchases,omitempty"`
	CostCurve    formula.Formula `yaml:"costCurve"`
}

// Upgrade is the raw definition of a one-time or repeatable purchase that
// applies persistent effects.
type Upgrade struct {
	ID                  string               `yaml:"id" validate:"required"`
	Name                LocalizedText        `yaml:"name" validate:"required"`
	Category            string               `yaml:"category,omitempty"`
	Targets             []UpgradeTarget      `yaml:"targets,omitempty"`
	Cost                PurchaseCost         `yaml:"cost"`
	Effects             []UpgradeEffect      `yaml:"effects,omitempty"`
	Prerequisites       []condition.Condition `yaml:"prerequisites,omitempty"`
	Repeatable          *RepeatablePolicy    `yaml:"repeatable,omitempty"`
	UnlockCondition     *condition.Condition `yaml:"unlockCondition,omitempty"`
	VisibilityCondition *condition.Condition `yaml:"visibilityCondition,omitempty"`
}

// AchievementTrackKind tags what an achievement's progress is measured
// against.
type AchievementTrackKind string

const (
	TrackResource        AchievementTrackKind = "resource"
	TrackGeneratorLevel  AchievementTrackKind = "generator-level"
	TrackGeneratorCount  AchievementTrackKind = "generator-count"
	TrackUpgradeOwned    AchievementTrackKind = "upgrade-owned"
	TrackFlag            AchievementTrackKind = "flag"
	TrackScript          AchievementTrackKind = "script"
	TrackCustomMetric    AchievementTrackKind = "custom-metric"
)

// ProgressMode tags whether an achievement completes once or repeatedly.
type ProgressMode string

const (
	ProgressOneShot   ProgressMode = "oneShot"
	ProgressRepeatable ProgressMode = "repeatable"
)

// AchievementRepeatPolicy governs repeatable-achievement reset/scaling.
type AchievementRepeatPolicy struct {
	MaxRepeats    *int            `yaml:"maxRepeats,omitempty"`
	ResetWindow   int             `yaml:"resetWindow,omitempty"`
	RewardScaling formula.Formula `yaml:"rewardScaling,omitempty"`
}

// AchievementProgress describes how an achievement's completion is
// measured.
type AchievementProgress struct {
	Mode       ProgressMode             `yaml:"mode" validate:"required,oneof=oneShot repeatable"`
	TrackKind  AchievementTrackKind     `yaml:"trackKind" validate:"required"`
	TrackRef   string                   `yaml:"trackRef,omitempty"`
	Target     formula.Formula          `yaml:"target"`
	Repeatable *AchievementRepeatPolicy `yaml:"repeatable,omitempty"`
}

// AchievementReward is granted on each completion.
type AchievementReward struct {
	GrantResource  string  `yaml:"grantResource,omitempty"`
	GrantAmount    float64 `yaml:"grantAmount,omitempty"`
	GrantUpgrade   string  `yaml:"grantUpgrade,omitempty"`
	UnlockAutomation string `yaml:"unlockAutomation,omitempty"`
	GrantFlag      string  `yaml:"grantFlag,omitempty"`
	GrantFlagValue bool    `yaml:"grantFlagValue,omitempty"`
	EmitEvent      string  `yaml:"emitEvent,omitempty"`
}

// Achievement is the raw definition of a completable milestone.
type Achievement struct {
	ID                  string               `yaml:"id" validate:"required"`
	Name                LocalizedText        `yaml:"name" validate:"required"`
	Category            string               `yaml:"category,omitempty"`
	Tier                int                  `yaml:"tier" validate:"min=1"`
	Track               string               `yaml:"track,omitempty"`
	Progress            AchievementProgress  `yaml:"progress"`
	UnlockCondition     *condition.Condition `yaml:"unlockCondition,omitempty"`
	VisibilityCondition *condition.Condition `yaml:"visibilityCondition,omitempty"`
	Reward              *AchievementReward   `yaml:"reward,omitempty"`
	OnUnlockEvents      []string             `yaml:"onUnlockEvents,omitempty"`
}

// RetentionKind tags whether a prestige retention entry keeps a resource
// amount or an upgrade.
type RetentionKind string

const (
	RetainResource RetentionKind = "resource"
	RetainUpgrade  RetentionKind = "upgrade"
)

// RetentionEntry names what survives a prestige reset.
type RetentionEntry struct {
	Kind   RetentionKind `yaml:"kind" validate:"required,oneof=resource upgrade"`
	ID     string        `yaml:"id" validate:"required"`
	Amount *float64      `yaml:"amount,omitempty"`
}

// PrestigeReward describes what a prestige reset grants.
type PrestigeReward struct {
	ResourceID      string          `yaml:"resourceId" validate:"required"`
	BaseReward      formula.Formula `yaml:"baseReward"`
	MultiplierCurve *formula.Formula `yaml:"multiplierCurve,omitempty"`
}

// PrestigeLayer is the raw definition of a reset-and-reward mechanic.
type PrestigeLayer struct {
	ID              string              `yaml:"id" validate:"required"`
	Name            LocalizedText       `yaml:"name" validate:"required"`
	ResetTargets    []string            `yaml:"resetTargets,omitempty"`
	UnlockCondition condition.Condition `yaml:"unlockCondition"`
	Reward          PrestigeReward      `yaml:"reward"`
	Retention       []RetentionEntry    `yaml:"retention,omitempty"`
	Automation      bool                `yaml:"automation,omitempty"`
}

// TransformMode tags how a Transform executes.
type TransformMode string

const (
	TransformInstant    TransformMode = "instant"
	TransformContinuous TransformMode = "continuous"
	TransformBatch      TransformMode = "batch"
	TransformMission    TransformMode = "mission"
)

// MissionStage is one step of a mission-mode transform.
type MissionStage struct {
	ID       string  `yaml:"id" validate:"required"`
	Duration float64 `yaml:"duration" validate:"min=0"`
}

// Transform is the raw definition of a resource conversion.
type Transform struct {
	ID                 string              `yaml:"id" validate:"required"`
	Mode               TransformMode       `yaml:"mode" validate:"required,oneof=instant continuous batch mission"`
	Inputs             []ResourceCost      `yaml:"inputs,omitempty"`
	Outputs            []ResourceCost      `yaml:"outputs,omitempty"`
	Duration           *float64            `yaml:"duration,omitempty"`
	Cooldown           *float64            `yaml:"cooldown,omitempty"`
	Trigger            condition.Condition `yaml:"trigger"`
	Stages             []MissionStage      `yaml:"stages,omitempty"`
	EntityRequirements []string            `yaml:"entityRequirements,omitempty"`
	Outcomes           []string            `yaml:"outcomes,omitempty"`
}

// EngineVersionRange bounds a module's compatibility window as a pair of
// simple monotonic version counters (the spec's feature-gate ranges are
// expressed this way rather than semver; the content pack declares the
// engine surface it targets as an integer version, and modules declare the
// integer window in which they are valid).
type EngineVersionRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max,omitempty"`
}

// Covers reports whether version v falls within the range (Max==0 means
// unbounded above).
func (r EngineVersionRange) Covers(v int) bool {
	if v < r.Min {
		return false
	}
	if r.Max == 0 {
		return true
	}
	return v <= r.Max
}

// Pack is the raw, pre-validation content pack as authored (YAML or a
// pre-decoded Go value).
type Pack struct {
	Engine           int                `yaml:"engine"`
	SupportedLocales []string           `yaml:"supportedLocales,omitempty"`
	Resources        []Resource         `yaml:"resources,omitempty"`
	Generators       []Generator        `yaml:"generators,omitempty"`
	Upgrades         []Upgrade          `yaml:"upgrades,omitempty"`
	Achievements     []Achievement      `yaml:"achievements,omitempty"`
	PrestigeLayers   []PrestigeLayer    `yaml:"prestigeLayers,omitempty"`
	Transforms       []Transform        `yaml:"transforms,omitempty"`
	Metrics          []string           `yaml:"metrics,omitempty"`
	RuntimeEvents    []string           `yaml:"runtimeEvents,omitempty"`
	Flags            []string           `yaml:"flags,omitempty"`
	Scripts          []string           `yaml:"scripts,omitempty"`
}

// ResourceDefinitionDigest fingerprints the ordered set of resource ids a
// pack declares.
type ResourceDefinitionDigest struct {
	IDs     []string `json:"ids"`
	Version int      `json:"version"`
	Hash    string   `json:"hash"`
}

// Lookup is the validator's O(1) id-to-entity index over a NormalizedPack's
// frozen collections.
type Lookup struct {
	Resources      map[string]*Resource
	Generators     map[string]*Generator
	Upgrades       map[string]*Upgrade
	Achievements   map[string]*Achievement
	PrestigeLayers map[string]*PrestigeLayer
	Transforms     map[string]*Transform
	Metrics        map[string]struct{}
}

// NormalizedPack is the validator's frozen, deduplicated-and-sorted output.
// Every collection is sorted by id; callers must treat it as read-only.
type NormalizedPack struct {
	Engine           int
	SupportedLocales []string
	Resources        []Resource
	Generators       []Generator
	Upgrades         []Upgrade
	Achievements     []Achievement
	PrestigeLayers   []PrestigeLayer
	Transforms       []Transform
	Metrics          []string
	Lookup           Lookup
	Digest           ResourceDefinitionDigest
}
