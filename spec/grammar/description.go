package grammar

type Terminal struct {
	Number        int    `json:"number"`
	Name          string `json:"name"`
	Anonymous     bool   `json:"anonymous"`
	Pattern       string `json:"pattern,omitempty"`
	Codes         string `json:"codes,omitempty"`
	Precedence    int    `json:"prec"`
	Associativity string `json:"assoc"`
}

type NonTerminal struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Auxiliary bool   `json:"auxiliary"`
}

type Production struct {
	Number        int    `json:"number"`
	LHS           int    `json:"lhs"`
	RHS           []int  `json:"rhs"`
	Action        string `json:"action,omitempty"`
	Builtin       string `json:"builtin,omitempty"`
	Precedence    int    `json:"prec"`
	Associativity string `json:"assoc"`
}

type Item struct {
	Production int `json:"production"`
	Dot        int `json:"dot"`
}

type Transition struct {
	Symbol int `json:"symbol"`
	State  int `json:"state"`
}

type Reduce struct {
	LookAhead  []int `json:"look_ahead"`
	Production int   `json:"production"`
}

type ConflictResolutionMethod string

const (
	ResolvedByPrec       = ConflictResolutionMethod("prec")
	ResolvedByAssoc      = ConflictResolutionMethod("assoc")
	ResolvedByUnresolved = ConflictResolutionMethod("unresolved")
)

// SRConflict records a shift/reduce conflict. When the conflict is resolved, exactly one of
// AdoptedState and AdoptedProduction is set. An unresolved conflict keeps both actions.
type SRConflict struct {
	Symbol            int                      `json:"symbol"`
	State             int                      `json:"state"`
	Production        int                      `json:"production"`
	AdoptedState      *int                     `json:"adopted_state"`
	AdoptedProduction *int                     `json:"adopted_production"`
	ResolvedBy        ConflictResolutionMethod `json:"resolved_by"`
}

// RRConflict records a reduce/reduce conflict. Such conflicts are never resolved at build time.
type RRConflict struct {
	Symbol      int `json:"symbol"`
	Production1 int `json:"production_1"`
	Production2 int `json:"production_2"`
}

type State struct {
	Number     int           `json:"number"`
	Kernel     []*Item       `json:"kernel"`
	Shift      []*Transition `json:"shift"`
	Reduce     []*Reduce     `json:"reduce"`
	GoTo       []*Transition `json:"goto"`
	Accept     bool          `json:"accept"`
	SRConflict []*SRConflict `json:"sr_conflict"`
	RRConflict []*RRConflict `json:"rr_conflict"`
}

type Report struct {
	Terminals    []*Terminal    `json:"terminals"`
	NonTerminals []*NonTerminal `json:"non_terminals"`
	Productions  []*Production  `json:"productions"`
	States       []*State       `json:"states"`
}
