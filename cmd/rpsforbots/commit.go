package main

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/lox/rpsforbots/internal/game"
)

// CommitCmd prints the commitment for a move, or checks one
type CommitCmd struct {
	Move   string `arg:"" help:"Move to commit to (rock, paper, scissors, lizard, spock or 0-4)"`
	Salt   string `help:"Salt to hash with the move (random when empty)"`
	Verify string `help:"Check this commitment against the move and salt instead"`
}

func (c *CommitCmd) Run() error {
	move, err := game.ParseMove(c.Move)
	if err != nil {
		return err
	}

	if c.Verify != "" {
		if err := game.ValidateCommitment(c.Verify); err != nil {
			return err
		}
		if !game.VerifyCommitment(c.Verify, move, c.Salt) {
			return fmt.Errorf("commitment does not match %s with salt %q", move, c.Salt)
		}
		fmt.Println("ok")
		return nil
	}

	salt := c.Salt
	if salt == "" {
		salt = uuid.NewString()
	}
	fmt.Printf("move:       %s\n", move)
	fmt.Printf("salt:       %s\n", salt)
	fmt.Printf("commitment: %s\n", game.Commit(move, salt))
	fmt.Printf("reveal:     %c%s\n", move.Char(), salt)
	return nil
}
