package game

import (
	"github.com/cardlab/duel-server-go/internal/game/attrs"
)

// DeltaType names a delta on the wire.
type DeltaType string

const (
	DeltaSwitchTurn          DeltaType = "switchTurn"
	DeltaSwitchStatus        DeltaType = "switchStatus"
	DeltaPlaceUnit           DeltaType = "placeUnit"
	DeltaRemoveUnit          DeltaType = "removeUnit"
	DeltaUpdateEntityAttribs DeltaType = "updateEntityAttribs"
	DeltaCreateCards         DeltaType = "createCards"
	DeltaRevealCards         DeltaType = "revealCards"
	DeltaMoveCards           DeltaType = "moveCards"
	DeltaShowMessage         DeltaType = "showMessage"

	DeltaUnitAttackScope  DeltaType = "unitAttackScope"
	DeltaUnitTriggerScope DeltaType = "unitTriggerScope"
	DeltaCardPlayScope    DeltaType = "cardPlayScope"
	DeltaCardDrawScope    DeltaType = "cardDrawScope"
	DeltaEffectScope      DeltaType = "effectScope"
	DeltaCardDiscardScope DeltaType = "cardDiscardScope"
	DeltaDamageScope      DeltaType = "damageScope"
	DeltaHealScope        DeltaType = "healScope"
	DeltaAlterationScope  DeltaType = "alterationScope"
	DeltaDeathScope       DeltaType = "deathScope"
)

// Delta is the wire description of one committed change.
type Delta interface {
	DeltaType() DeltaType
}

// ScopeState marks the position of a scope delta inside its bracket.
type ScopeState string

const (
	ScopeStart          ScopeState = "start"
	ScopePreparationEnd ScopeState = "preparationEnd"
	ScopeEnd            ScopeState = "end"
)

// ScopeDelta is implemented by the bracketing deltas.
type ScopeDelta interface {
	Delta
	Scope() ScopeState
}

// ScopeMark is embedded in every scope delta.
type ScopeMark struct {
	State ScopeState `json:"state"`
}

func (s ScopeMark) Scope() ScopeState { return s.State }

// Tint classifies an effect for presentation.
type Tint string

const (
	TintNeutral  Tint = "neutral"
	TintPositive Tint = "positive"
	TintNegative Tint = "negative"
)

type SwitchTurnDelta struct {
	Turn     int         `json:"turn"`
	WhoPlays PlayerIndex `json:"whoPlays"`
}

type SwitchStatusDelta struct {
	Status Status       `json:"status"`
	Winner *PlayerIndex `json:"winner,omitempty"`
}

type PlaceUnitDelta struct {
	Unit     UnitView `json:"unit"`
	Position Position `json:"position"`
}

type RemoveUnitDelta struct {
	UnitIDs []int `json:"unitIds"`
}

type UpdateEntityAttribsDelta struct {
	EntityID int              `json:"entityId"`
	Attribs  map[attrs.ID]int `json:"attribs"`
}

type CreateCardsDelta struct {
	CardIDs  []int        `json:"cardIds"`
	Location CardLocation `json:"location"`
}

// RevealCardsDelta carries card contents; only the listed players may see them.
type RevealCardsDelta struct {
	Cards []CardView    `json:"cards"`
	To    []PlayerIndex `json:"to"`
}

type MoveCardsDelta struct {
	CardIDs []int        `json:"cardIds"`
	From    CardLocation `json:"from"`
	To      CardLocation `json:"to"`
}

type ShowMessageDelta struct {
	Message string `json:"message"`
	// Player restricts the message to one seat when set.
	Player *PlayerIndex `json:"player,omitempty"`
}

type UnitAttackScopeDelta struct {
	ScopeMark
	UnitID   int `json:"unitId"`
	TargetID int `json:"targetId"`
}

type UnitTriggerScopeDelta struct {
	ScopeMark
	UnitID int `json:"unitId"`
}

type CardPlayScopeDelta struct {
	ScopeMark
	CardID int         `json:"cardId"`
	Player PlayerIndex `json:"player"`
}

type CardDrawScopeDelta struct {
	ScopeMark
	Player PlayerIndex `json:"player"`
}

type EffectScopeDelta struct {
	ScopeMark
	SourceID int   `json:"sourceId"`
	Targets  []int `json:"targets"`
	Tint     Tint  `json:"tint"`
}

type CardDiscardScopeDelta struct {
	ScopeMark
	Player PlayerIndex `json:"player"`
}

type DamageScopeDelta struct {
	ScopeMark
	SourceID int `json:"sourceId"`
	TargetID int `json:"targetId"`
	Damage   int `json:"damage"`
}

type HealScopeDelta struct {
	ScopeMark
	SourceID int `json:"sourceId"`
	TargetID int `json:"targetId"`
	Amount   int `json:"amount"`
}

type AlterationScopeDelta struct {
	ScopeMark
	SourceID int  `json:"sourceId"`
	TargetID int  `json:"targetId"`
	Positive bool `json:"positive"`
}

type DeathScopeDelta struct {
	ScopeMark
	UnitID   int `json:"unitId"`
	SourceID int `json:"sourceId"`
}

func (SwitchTurnDelta) DeltaType() DeltaType          { return DeltaSwitchTurn }
func (SwitchStatusDelta) DeltaType() DeltaType        { return DeltaSwitchStatus }
func (PlaceUnitDelta) DeltaType() DeltaType           { return DeltaPlaceUnit }
func (RemoveUnitDelta) DeltaType() DeltaType          { return DeltaRemoveUnit }
func (UpdateEntityAttribsDelta) DeltaType() DeltaType { return DeltaUpdateEntityAttribs }
func (CreateCardsDelta) DeltaType() DeltaType         { return DeltaCreateCards }
func (RevealCardsDelta) DeltaType() DeltaType         { return DeltaRevealCards }
func (MoveCardsDelta) DeltaType() DeltaType           { return DeltaMoveCards }
func (ShowMessageDelta) DeltaType() DeltaType         { return DeltaShowMessage }
func (UnitAttackScopeDelta) DeltaType() DeltaType     { return DeltaUnitAttackScope }
func (UnitTriggerScopeDelta) DeltaType() DeltaType    { return DeltaUnitTriggerScope }
func (CardPlayScopeDelta) DeltaType() DeltaType       { return DeltaCardPlayScope }
func (CardDrawScopeDelta) DeltaType() DeltaType       { return DeltaCardDrawScope }
func (EffectScopeDelta) DeltaType() DeltaType         { return DeltaEffectScope }
func (CardDiscardScopeDelta) DeltaType() DeltaType    { return DeltaCardDiscardScope }
func (DamageScopeDelta) DeltaType() DeltaType         { return DeltaDamageScope }
func (HealScopeDelta) DeltaType() DeltaType           { return DeltaHealScope }
func (AlterationScopeDelta) DeltaType() DeltaType     { return DeltaAlterationScope }
func (DeathScopeDelta) DeltaType() DeltaType          { return DeltaDeathScope }
