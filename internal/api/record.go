package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/camkit/camnode/internal/recorder"
)

// registerRecordRoutes sets up recording control.
func (s *Server) registerRecordRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "record-start",
		Method:      http.MethodPost,
		Path:        s.path("/record/start"),
		Summary:     "Start Recording",
		Description: "Begin recording the stream to a file. Only one recording can be active.",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(ctx context.Context, input *RecordStartInput) (*RecordStartResponse, error) {
		output, err := s.opts.Recorder.Start(input.Body.Filename)
		if err != nil {
			if errors.Is(err, recorder.ErrAlreadyActive) {
				return nil, huma.Error409Conflict("a recording is already active")
			}
			return nil, huma.Error500InternalServerError("failed to start recording", err)
		}
		resp := &RecordStartResponse{}
		resp.Body.OutputPath = output
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "record-stop",
		Method:      http.MethodPost,
		Path:        s.path("/record/stop"),
		Summary:     "Stop Recording",
		Description: "Stop the active recording and finalize the output file",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(ctx context.Context, input *struct{}) (*RecordStopResponse, error) {
		output, err := s.opts.Recorder.Stop()
		if err != nil {
			if errors.Is(err, recorder.ErrNotRecording) {
				return nil, huma.Error409Conflict("no recording is active")
			}
			return nil, huma.Error500InternalServerError("failed to stop recording", err)
		}
		resp := &RecordStopResponse{}
		resp.Body.OutputPath = output
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "record-status",
		Method:      http.MethodGet,
		Path:        s.path("/record/status"),
		Summary:     "Recording Status",
		Description: "Report the recording slot state",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*RecordStatusResponse, error) {
		return &RecordStatusResponse{Body: s.opts.Recorder.Status()}, nil
	})
}
