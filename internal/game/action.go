package game

// ActionKind names an inbound action.
type ActionKind string

const (
	ActionRegister         ActionKind = "register"
	ActionAddPlayer        ActionKind = "add_player"
	ActionRemovePlayer     ActionKind = "remove_player"
	ActionSetLobby         ActionKind = "set_lobby"
	ActionSetBetSize       ActionKind = "set_bet_size"
	ActionSubmitMove       ActionKind = "submit_move"
	ActionReveal           ActionKind = "reveal"
	ActionChangeNextConfig ActionKind = "change_next_config"
	ActionStopGame         ActionKind = "stop_game"
)

// Action is one inbound request to the engine.
type Action interface {
	Kind() ActionKind
}

// Register joins the lobby paying the bet.
type Register struct{}

// AddPlayer puts a player in the lobby without payment. Owner only.
type AddPlayer struct {
	Player Address `json:"player"`
}

// RemovePlayer takes a player out of the lobby. Owner only.
type RemovePlayer struct {
	Player Address `json:"player"`
}

// SetLobby replaces the lobby. Owner only.
type SetLobby struct {
	Players []Address `json:"players"`
}

// SetBetSize changes the bet of the current config. Owner only.
type SetBetSize struct {
	BetSize Amount `json:"bet_size"`
}

// SubmitMove commits to a move with the hash produced by Commit.
type SubmitMove struct {
	Commitment string `json:"commitment"`
}

// RevealMove discloses the move and salt behind the caller's commitment.
type RevealMove struct {
	Move Move   `json:"move"`
	Salt string `json:"salt"`
}

// ChangeNextConfig stages a config for the next game. Owner only.
type ChangeNextConfig struct {
	Config GameConfig `json:"config"`
}

// StopGame ends the running game and pays everyone out. Owner only.
type StopGame struct{}

func (Register) Kind() ActionKind         { return ActionRegister }
func (AddPlayer) Kind() ActionKind        { return ActionAddPlayer }
func (RemovePlayer) Kind() ActionKind     { return ActionRemovePlayer }
func (SetLobby) Kind() ActionKind         { return ActionSetLobby }
func (SetBetSize) Kind() ActionKind       { return ActionSetBetSize }
func (SubmitMove) Kind() ActionKind       { return ActionSubmitMove }
func (RevealMove) Kind() ActionKind       { return ActionReveal }
func (ChangeNextConfig) Kind() ActionKind { return ActionChangeNextConfig }
func (StopGame) Kind() ActionKind         { return ActionStopGame }

// Message is an action together with the environment it arrived in.
type Message struct {
	Caller Address
	Value  Amount
	Action Action
}
