package catalog

import "errors"

var (
	ErrNotLoggedIn   = errors.New("no user is logged in")
	ErrNotMember     = errors.New("not a member of the board")
	ErrBoardExists   = errors.New("board already exists")
	ErrBoardNotFound = errors.New("board not found")
	ErrAlreadyMember = errors.New("already a member of the board")
	ErrNotCreator    = errors.New("only the creator may remove a board")
)
