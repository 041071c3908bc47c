package session

import (
	"github.com/mcdev12/quizclash/go/internal/models"
)

// FirstBuzz returns the winning buzz for a question: the earliest server
// timestamp wins, with log order breaking exact ties. Client timestamps
// never participate in ordering. Returns nil when nobody buzzed.
func FirstBuzz(buzzes []models.BuzzerEvent) *models.BuzzerEvent {
	var winner *models.BuzzerEvent
	for i := range buzzes {
		if winner == nil || buzzes[i].ServerTS.Before(winner.ServerTS) {
			winner = &buzzes[i]
		}
	}
	return winner
}
