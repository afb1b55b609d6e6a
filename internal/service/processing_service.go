package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pdf-annotator/internal/domain"

	"github.com/google/uuid"
)

// ErrServiceClosed is returned by Submit after Shutdown.
var ErrServiceClosed = errors.New("processing service is shut down")

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
	last   domain.Operation
	subs   map[chan domain.Operation]struct{}
}

// ProcessingService runs the simulated processing operations: a fixed-step
// progress loop followed by a byte copy of the input into a new file.
type ProcessingService struct {
	files  domain.FileRepository
	ops    domain.OperationRepository
	blobs  domain.BlobStore
	logger domain.Logger

	steps     int
	stepDelay time.Duration
	newID     func() string

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
	wg     sync.WaitGroup
}

var _ domain.ProcessingService = (*ProcessingService)(nil)

// NewProcessingService creates a new processing service
func NewProcessingService(
	files domain.FileRepository,
	ops domain.OperationRepository,
	blobs domain.BlobStore,
	settings domain.EditorSettings,
	logger domain.Logger,
) *ProcessingService {
	steps := settings.ProcessingSteps
	if steps <= 0 {
		steps = 10
	}
	return &ProcessingService{
		files:     files,
		ops:       ops,
		blobs:     blobs,
		logger:    logger,
		steps:     steps,
		stepDelay: settings.ProcessingStepDelay,
		newID:     func() string { return uuid.New().String() },
		jobs:      make(map[string]*job),
	}
}

// Submit records a pending operation for fileID and starts running it.
func (s *ProcessingService) Submit(ctx context.Context, fileID string, name domain.OperationName) (string, error) {
	if _, err := domain.ParseOperationName(string(name)); err != nil {
		return "", err
	}
	if _, err := s.files.GetFile(ctx, fileID); err != nil {
		return "", err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return "", ErrServiceClosed
	}

	op := &domain.Operation{
		ID:     s.newID(),
		FileID: fileID,
		Name:   name,
		Status: domain.StatusPending,
	}
	if err := s.ops.CreateOperation(ctx, op); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// Shutdown ran while the record was being written.
		op.Status = domain.StatusCancelled
		if err := s.ops.UpdateOperation(context.WithoutCancel(ctx), op); err != nil {
			s.logger.Warn("Failed to mark operation cancelled", "operation_id", op.ID, "error", err.Error())
		}
		return "", ErrServiceClosed
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.jobs[op.ID] = &job{
		cancel: cancel,
		done:   make(chan struct{}),
		last:   *op,
		subs:   make(map[chan domain.Operation]struct{}),
	}
	s.wg.Add(1)
	go s.run(runCtx, *op)

	s.logger.Info("Operation submitted", "operation_id", op.ID, "file_id", fileID, "operation", name)
	return op.ID, nil
}

// Get returns the stored state of an operation.
func (s *ProcessingService) Get(ctx context.Context, id string) (*domain.Operation, error) {
	return s.ops.GetOperation(ctx, id)
}

// Subscribe streams the operation's state, starting with the current one.
// The channel is closed after a terminal state or when ctx ends. Intermediate
// updates may be skipped by slow readers; the terminal state never is.
func (s *ProcessingService) Subscribe(ctx context.Context, id string) (<-chan domain.Operation, error) {
	ch := make(chan domain.Operation, 1)

	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		op, err := s.ops.GetOperation(ctx, id)
		if err != nil {
			return nil, err
		}
		ch <- *op
		close(ch)
		return ch, nil
	}
	ch <- j.last
	j.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-j.done:
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if j, ok := s.jobs[id]; ok {
			if _, ok := j.subs[ch]; ok {
				delete(j.subs, ch)
				close(ch)
			}
		}
	}()
	return ch, nil
}

// Cancel stops a running operation. Finished operations return domain.ErrOperationFinished.
func (s *ProcessingService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if ok {
		j.cancel()
		return nil
	}

	op, err := s.ops.GetOperation(ctx, id)
	if err != nil {
		return err
	}
	if op.Status.IsTerminal() {
		return domain.ErrOperationFinished
	}
	return nil
}

// Shutdown cancels every running operation and waits for the runners to exit.
func (s *ProcessingService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	for _, j := range s.jobs {
		j.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *ProcessingService) run(ctx context.Context, op domain.Operation) {
	defer s.wg.Done()
	store := context.WithoutCancel(ctx)

	op.Status = domain.StatusProcessing
	s.save(store, &op)

	ticker := time.NewTicker(max(s.stepDelay, time.Millisecond))
	defer ticker.Stop()

	for step := 1; step <= s.steps; step++ {
		select {
		case <-ctx.Done():
			op.Status = domain.StatusCancelled
			s.save(store, &op)
			s.logger.Info("Operation cancelled", "operation_id", op.ID, "progress", op.Progress)
			return
		case <-ticker.C:
		}
		// 100 is reserved for the completed state.
		op.Progress = min(step*100/s.steps, 99)
		s.save(store, &op)
	}

	if ctx.Err() != nil {
		op.Status = domain.StatusCancelled
		s.save(store, &op)
		return
	}

	outputID, err := s.copyInput(store, op)
	if err != nil {
		op.Status = domain.StatusFailed
		op.ErrorMessage = err.Error()
		s.save(store, &op)
		s.logger.Error("Operation failed", err, "operation_id", op.ID)
		return
	}

	op.Status = domain.StatusCompleted
	op.Progress = 100
	op.OutputFileID = outputID
	s.save(store, &op)
	s.logger.Info("Operation completed", "operation_id", op.ID, "output_file_id", outputID)
}

// copyInput stores a byte-for-byte copy of the operation's input as a new file.
func (s *ProcessingService) copyInput(ctx context.Context, op domain.Operation) (string, error) {
	in, err := s.files.GetFile(ctx, op.FileID)
	if err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}
	rc, err := s.blobs.Open(ctx, in.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open input: %w", err)
	}
	defer rc.Close()

	id := s.newID()
	ext := filepath.Ext(in.StoragePath)
	path := id + ext
	size, err := s.blobs.Put(ctx, path, rc)
	if err != nil {
		return "", fmt.Errorf("store output: %w", err)
	}

	out := &domain.FileRecord{
		ID:          id,
		DisplayName: outputName(in.DisplayName, op.Name),
		MimeType:    in.MimeType,
		ByteSize:    size,
		StoragePath: path,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.files.CreateFile(ctx, out); err != nil {
		return "", fmt.Errorf("record output: %w", err)
	}
	return id, nil
}

func outputName(input string, name domain.OperationName) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "-" + string(name) + ext
}

// save persists op and fans it out to subscribers. Terminal states end the job.
func (s *ProcessingService) save(ctx context.Context, op *domain.Operation) {
	if err := s.ops.UpdateOperation(ctx, op); err != nil {
		s.logger.Error("Failed to persist operation", err, "operation_id", op.ID, "status", op.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[op.ID]
	if !ok {
		return
	}
	j.last = *op
	for ch := range j.subs {
		select {
		case ch <- *op:
		default:
			// Drop the stale value so the latest state is always delivered.
			select {
			case <-ch:
			default:
			}
			ch <- *op
		}
		if op.Status.IsTerminal() {
			close(ch)
		}
	}
	if op.Status.IsTerminal() {
		j.cancel()
		close(j.done)
		delete(s.jobs, op.ID)
	}
}
