package services

import (
	"context"
	stderrors "errors"

	"github.com/vytor/starcards/internal/errors"
	"github.com/vytor/starcards/internal/ledger"
	"github.com/vytor/starcards/internal/logger"
)

// ProgressService exposes the whole-ledger operations to the teacher.
type ProgressService interface {
	Export(ctx context.Context, pin string) ([]byte, error)
	Import(ctx context.Context, pin string, data []byte) (int, error)
	Reset(ctx context.Context, pin string) error
}

type progressService struct {
	ledger *ledger.Ledger
	pin    string
}

// NewProgressService creates a ProgressService guarded by teacherPIN.
func NewProgressService(l *ledger.Ledger, teacherPIN string) ProgressService {
	return &progressService{ledger: l, pin: teacherPIN}
}

func (s *progressService) authorize(ctx context.Context, pin, op string) error {
	if checkPIN(s.pin, pin) {
		return nil
	}
	logger.FromContext(ctx).Warn("%s refused: wrong PIN", op)
	return errors.NewUnauthorizedError("incorrect PIN")
}

func (s *progressService) Export(ctx context.Context, pin string) ([]byte, error) {
	if err := s.authorize(ctx, pin, "export"); err != nil {
		return nil, err
	}
	body, err := s.ledger.Export(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("failed to export ledger: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return body, nil
}

func (s *progressService) Import(ctx context.Context, pin string, data []byte) (int, error) {
	log := logger.FromContext(ctx)
	if err := s.authorize(ctx, pin, "import"); err != nil {
		return 0, err
	}
	n, err := s.ledger.Import(ctx, data)
	if err != nil {
		if stderrors.Is(err, ledger.ErrInvalidDocument) {
			log.Warn("import rejected: %v", err)
			return 0, errors.NewImportRejectedError(err)
		}
		log.Error("failed to import ledger: %v", err)
		return 0, errors.NewInternalError(err)
	}
	log.Info("imported progress for %d students", n)
	return n, nil
}

func (s *progressService) Reset(ctx context.Context, pin string) error {
	log := logger.FromContext(ctx)
	if err := s.authorize(ctx, pin, "reset"); err != nil {
		return err
	}
	if err := s.ledger.Reset(ctx); err != nil {
		log.Error("failed to clear celebrated badges: %v", err)
		return errors.NewInternalError(err)
	}
	log.Info("all progress reset")
	return nil
}
