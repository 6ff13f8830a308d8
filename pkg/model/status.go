package model

import "fmt"

type GameStatus uint32

const (
	GameStarting GameStatus = iota
	GameMenus
	GameRunning
	GamePaused
)

func (s GameStatus) String() string {
	switch s {
	case GameStarting:
		return "Starting"
	case GameMenus:
		return "Menus"
	case GameRunning:
		return "Running"
	case GamePaused:
		return "Paused"
	default:
		return fmt.Sprintf("GameStatus(%d)", uint32(s))
	}
}

type RaceStatus uint32

const (
	RaceBeforeState RaceStatus = iota
	RaceRunning
	RaceFinished
)

func (s RaceStatus) String() string {
	switch s {
	case RaceBeforeState:
		return "BeforeState"
	case RaceRunning:
		return "Running"
	case RaceFinished:
		return "Finished"
	default:
		return fmt.Sprintf("RaceStatus(%d)", uint32(s))
	}
}
