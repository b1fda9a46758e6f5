// Package api exposes the drift prediction service over gRPC.
package api

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/drift-predictor/internal/logging"
	"github.com/signalsfoundry/drift-predictor/internal/predict"
	"github.com/signalsfoundry/drift-predictor/model"
)

// Predictor runs one prediction. *predict.Service satisfies it.
type Predictor interface {
	Predict(ctx context.Context, req predict.Request) (*predict.Prediction, error)
}

// ProfileCatalog lists and resolves object profiles. *kb.Registry satisfies it.
type ProfileCatalog interface {
	Lookup(id string) (model.ObjectProfile, error)
	List() []model.ObjectProfile
}

// Server implements DriftServiceServer.
type Server struct {
	predictor Predictor
	profiles  ProfileCatalog
	log       logging.Logger
}

var _ DriftServiceServer = (*Server)(nil)

// NewServer builds a Server. A nil logger disables logging.
func NewServer(predictor Predictor, profiles ProfileCatalog, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{predictor: predictor, profiles: profiles, log: log}
}

// Predict decodes the request, runs the prediction and encodes the result.
func (s *Server) Predict(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := PredictRequestFromStruct(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	pred, err := s.predictor.Predict(ctx, req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := PredictionToStruct(pred)
	if err != nil {
		logging.FromContextOr(ctx, s.log).Error(ctx, "encode prediction", logging.Err(err))
		return nil, ToStatusError(err)
	}
	return out, nil
}

// ListProfiles returns every registered profile sorted by id.
func (s *Server) ListProfiles(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := ProfilesToStruct(s.profiles.List())
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

// GetProfile resolves {"object_type": "..."} to its profile.
func (s *Server) GetProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(in.GetFields(), "object_type")
	if err != nil {
		return nil, ToStatusError(err)
	}
	p, err := s.profiles.Lookup(id)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := ProfileToStruct(p)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}
