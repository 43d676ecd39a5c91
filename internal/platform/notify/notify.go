// Package notify pushes pipeline outcomes to the clinician's Telegram chat.
// Delivery is strictly best-effort: failures are logged and never propagate
// into the pipeline.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"clinical-scribe/internal/consultation"
	"clinical-scribe/internal/report"
)

// MessageSender is the slice of the telegram client this service needs.
type MessageSender interface {
	SendMessage(chatID int64, text string) error
	SendDocument(chatID int64, fileData []byte, fileName string) error
}

// NoteLoader fetches the note attached to a finished consultation.
type NoteLoader interface {
	GetNote(ctx context.Context, id uuid.UUID) (*consultation.GeneratedNote, error)
}

type Service struct {
	sender          MessageSender
	notes           NoteLoader
	reports         *report.Service
	clinicianChatID int64
}

func NewService(sender MessageSender, notes NoteLoader, reports *report.Service, clinicianChatID int64) *Service {
	return &Service{sender: sender, notes: notes, reports: reports, clinicianChatID: clinicianChatID}
}

// RunFinished implements the orchestrator's Notifier hook.
func (s *Service) RunFinished(ctx context.Context, c *consultation.Consultation) {
	if s.clinicianChatID == 0 {
		return
	}

	switch c.State {
	case consultation.StateError:
		msg := fmt.Sprintf("Consultation %s failed: %s", c.ID, c.ErrorMessage)
		if err := s.sender.SendMessage(s.clinicianChatID, msg); err != nil {
			log.Printf("Failed to send failure notification: %v", err)
		}
	case consultation.StateReady:
		s.sendNote(ctx, c)
	}
}

func (s *Service) sendNote(ctx context.Context, c *consultation.Consultation) {
	msg := fmt.Sprintf("Consultation %s is ready for review.", c.ID)
	if err := s.sender.SendMessage(s.clinicianChatID, msg); err != nil {
		log.Printf("Failed to send ready notification: %v", err)
	}

	if c.GeneratedNoteID == nil {
		return
	}
	note, err := s.notes.GetNote(ctx, *c.GeneratedNoteID)
	if err != nil {
		log.Printf("Failed to load note for notification: %v", err)
		return
	}
	pdf, err := s.reports.Render(c, note)
	if err != nil {
		log.Printf("Failed to render note PDF: %v", err)
		return
	}
	fileName := fmt.Sprintf("note_%s.pdf", c.ID)
	if err := s.sender.SendDocument(s.clinicianChatID, pdf, fileName); err != nil {
		log.Printf("Failed to send note PDF: %v", err)
	}
}
