package routing

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"planner.onebusaway.org/internal/raptor"
	"planner.onebusaway.org/internal/utils"
)

var (
	ErrNoSnapshot  = errors.New("no routing snapshot available")
	ErrUnknownStop = errors.New("unknown stop")
)

// ValidationError lists invalid request fields by their parameter name.
type ValidationError struct {
	FieldErrors map[string][]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	return "invalid plan request: " + strings.Join(fields, ", ")
}

func (e *ValidationError) Unwrap() error { return raptor.ErrInvalidRequest }

const (
	OptimizeTime  = "time"
	OptimizeMulti = "multi"
)

// Location is a plan endpoint: a GTFS stop id, or a coordinate when StopID is empty.
type Location struct {
	Lat    float64
	Lon    float64
	StopID string
}

func (l Location) IsStop() bool { return l.StopID != "" }

// PlanRequest asks for itineraries between two locations. Zero values take the planner defaults.
type PlanRequest struct {
	From     Location  `json:"from"`
	To       Location  `json:"to"`
	Time     time.Time `json:"time" validate:"required"`
	ArriveBy bool      `json:"arriveBy"`

	SearchWindow    time.Duration `json:"window" validate:"min=0,max=24h"`
	MaxTransfers    *int          `json:"maxTransfers" validate:"omitempty,min=0,max=12"`
	Optimize        string        `json:"optimize" validate:"omitempty,oneof=time multi"`
	WalkSpeed       float64       `json:"walkSpeed" validate:"min=0,max=5"`
	MaxWalkDistance float64       `json:"maxWalkDistance" validate:"min=0,max=5000"`
	NumItineraries  int           `json:"numItineraries" validate:"min=0,max=20"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (p *Planner) validate(req PlanRequest) error {
	fieldErrors := map[string][]string{}

	if err := p.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fieldErrors[fe.Field()] = append(fieldErrors[fe.Field()], fmt.Sprintf("failed %s validation", fe.Tag()))
		}
	}

	for prefix, loc := range map[string]Location{"from": req.From, "to": req.To} {
		if loc.IsStop() {
			if err := utils.ValidateID(loc.StopID); err != nil {
				fieldErrors[prefix+"Stop"] = append(fieldErrors[prefix+"Stop"], err.Error())
			}
			continue
		}
		fieldErrors = utils.ValidateLocation(prefix+"Lat", prefix+"Lon", loc.Lat, loc.Lon, fieldErrors)
	}

	if len(fieldErrors) > 0 {
		return &ValidationError{FieldErrors: fieldErrors}
	}
	return nil
}
