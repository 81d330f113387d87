package service

import (
	"fmt"
	"log"

	"streetparking/internal/repository"
)

// JobService runs the periodic overtime sweep.
type JobService struct {
	Repo   *repository.JobRepository
	Sender *SenderService
}

func NewJobService(repo *repository.JobRepository, sender *SenderService) *JobService {
	return &JobService{Repo: repo, Sender: sender}
}

// WarnOvertimeSessions finds parked cars whose metered cost has passed their
// prepaid balance and sends each owner a single warning.
func (s *JobService) WarnOvertimeSessions() error {
	sessions, err := s.Repo.GetOverdueSessions()
	if err != nil {
		return fmt.Errorf("cron job: failed to get overdue sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	log.Printf("Cron Job: %d parked cars have exhausted their balance", len(sessions))

	plates := make([]string, 0, len(sessions))
	for _, session := range sessions {
		s.Sender.OvertimeWarning(session)
		plates = append(plates, session.Plate)
	}

	if err := s.Repo.MarkOvertimeNotified(plates); err != nil {
		return fmt.Errorf("cron job: failed to mark overtime notices: %w", err)
	}
	return nil
}
