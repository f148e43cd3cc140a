package ability

// EventKind names a script event.
type EventKind string

const (
	EventPostSpawn            EventKind = "postSpawn"
	EventPostCoreHurt         EventKind = "postCoreHurt"
	EventPostUnitEliminated   EventKind = "postUnitEliminated"
	EventPostUnitKill         EventKind = "postUnitKill"
	EventPostUnitHurt         EventKind = "postUnitHurt"
	EventPostUnitHeal         EventKind = "postUnitHeal"
	EventPostUnitAttack       EventKind = "postUnitAttack"
	EventPostUnitHealthChange EventKind = "postUnitHealthChange"
	EventPostUnitNthAttack    EventKind = "postUnitNthAttack"
	EventPostNthCardPlay      EventKind = "postNthCardPlay"
	EventPostCardMove         EventKind = "postCardMove"
	EventPostTurn             EventKind = "postTurn"
)

// Event is one of the Post* event types.
type Event interface {
	Kind() EventKind
}

type (
	PostSpawn          struct{}
	PostCoreHurt       struct{ Team Team }
	PostUnitEliminated struct{ Team Team }
	PostUnitKill       struct{}
	PostUnitHurt       struct {
		Team  Team
		Dealt bool
	}
	PostUnitHeal struct {
		Team  Team
		Dealt bool
	}
	PostUnitAttack struct {
		Team  Team
		Dealt bool
	}
	PostUnitHealthChange struct{ Threshold int }
	PostUnitNthAttack    struct{ N int }
	PostNthCardPlay      struct{ N int }
	PostCardMove         struct{ Move CardMoveKind }
	PostTurn             struct{ Team Team }
)

func (PostSpawn) Kind() EventKind            { return EventPostSpawn }
func (PostCoreHurt) Kind() EventKind         { return EventPostCoreHurt }
func (PostUnitEliminated) Kind() EventKind   { return EventPostUnitEliminated }
func (PostUnitKill) Kind() EventKind         { return EventPostUnitKill }
func (PostUnitHurt) Kind() EventKind         { return EventPostUnitHurt }
func (PostUnitHeal) Kind() EventKind         { return EventPostUnitHeal }
func (PostUnitAttack) Kind() EventKind       { return EventPostUnitAttack }
func (PostUnitHealthChange) Kind() EventKind { return EventPostUnitHealthChange }
func (PostUnitNthAttack) Kind() EventKind    { return EventPostUnitNthAttack }
func (PostNthCardPlay) Kind() EventKind      { return EventPostNthCardPlay }
func (PostCardMove) Kind() EventKind         { return EventPostCardMove }
func (PostTurn) Kind() EventKind             { return EventPostTurn }

// Filter narrows an entity set. The set of filters is closed.
type Filter interface {
	isFilter()
}

type (
	CardTypeFilter struct{ Kind CardKind }
	AttrFilter     struct {
		Attr  Attribute
		Op    Comparator
		Value int
	}
	WoundedFilter   struct{}
	AdjacentFilter  struct{}
	ArchetypeFilter struct{ Archetype string }
)

func (CardTypeFilter) isFilter()  {}
func (AttrFilter) isFilter()      {}
func (WoundedFilter) isFilter()   {}
func (AdjacentFilter) isFilter()  {}
func (ArchetypeFilter) isFilter() {}

// Target resolves to a list of entities. The set of targets is closed.
type Target interface {
	isTarget()
}

type (
	MeTarget     struct{}
	SourceTarget struct{}
	// EventTarget is the target of the fragment being reacted to.
	EventTarget struct{}
	CoreTarget  struct{ Enemy bool }
	QueryTarget struct {
		Kind    EntityKind
		Team    Team
		Filters []Filter
		N       int
	}
	NearbyAllyTarget struct{ Direction Direction }
)

func (MeTarget) isTarget()         {}
func (SourceTarget) isTarget()     {}
func (EventTarget) isTarget()      {}
func (CoreTarget) isTarget()       {}
func (QueryTarget) isTarget()      {}
func (NearbyAllyTarget) isTarget() {}

// Action is a script instruction. The set of actions is closed.
type Action interface {
	isAction()
}

type (
	DrawAction struct {
		N       int
		Filters []Filter
	}
	CreateAction struct {
		N       int
		Filters []Filter
	}
	DiscardAction struct {
		N       int
		MyHand  bool
		Filters []Filter
	}
	ModifierAction struct {
		IsBuff   bool
		Value    int
		Attr     Attribute
		Target   Target
		Duration int
	}
	GrantAttackAction struct {
		N      int
		Target Target
	}
	HurtAction struct {
		Damage int
		Target Target
	}
	HealAction struct {
		Damage int
		Target Target
	}
	AttackAction struct {
		Target Target
	}
	SingleConditionalAction struct {
		Subject    ConditionalSubject
		Conditions []Filter
		Actions    []Action
	}
	MultiConditionalAction struct {
		MinUnits   int
		Team       Team
		Conditions []Filter
		Actions    []Action
	}
	RandomConditionalAction struct {
		PercentChance int
		Actions       []Action
	}
	DeployAction struct {
		Filters   []Filter
		Direction Direction
	}
)

func (DrawAction) isAction()              {}
func (CreateAction) isAction()            {}
func (DiscardAction) isAction()           {}
func (ModifierAction) isAction()          {}
func (GrantAttackAction) isAction()       {}
func (HurtAction) isAction()              {}
func (HealAction) isAction()              {}
func (AttackAction) isAction()            {}
func (SingleConditionalAction) isAction() {}
func (MultiConditionalAction) isAction()  {}
func (RandomConditionalAction) isAction() {}
func (DeployAction) isAction()            {}
