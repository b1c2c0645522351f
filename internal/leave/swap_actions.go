package leave

import (
	"context"

	"github.com/google/uuid"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

type postSwapInput struct {
	ShiftID string `json:"shiftId"`
	Message string `json:"message"`
}

type swapResult struct {
	SwapID  string     `json:"swapId"`
	ShiftID string     `json:"shiftId"`
	Status  SwapStatus `json:"status"`
}

var ownsShift = actions.NewPredicate("ownsShift", func(ec *actions.ExecutionContext, s workforce.Shift) bool {
	return s.Principal == ec.Principal
})

func (m *Module) postSwapRequest() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "calendar.post_swap_request",
		Permission:  access.ShiftSwap,
		Label:       "Offer shift swap",
		Description: "Offer one of your future shifts to colleagues",
		Keywords:    []string{"swap", "shift", "exchange"},
		Schema: schema.New(
			schema.String("shiftId").Required().Len(1, 128),
			schema.String("message").MaxLen(500),
		),
		Metadata: actions.Metadata{Risk: actions.RiskLow},
	}, m.handlePostSwap)
}

func (m *Module) handlePostSwap(ctx context.Context, in postSwapInput, ec *actions.ExecutionContext) (swapResult, error) {
	shiftID := id.ShiftID(in.ShiftID)
	var out swapResult
	err := m.locker.Do(ctx, shiftKey(shiftID), func(ctx context.Context) error {
		shift, err := m.workforce.Shift(ctx, shiftID)
		if err != nil {
			return workforce.Translate(err, "shift not found")
		}
		if err := actions.Require(ec, shift, ownsShift); err != nil {
			return err
		}
		if shift.Status != workforce.ShiftPublished {
			return dErrors.Newf(dErrors.CodeBusinessRule, "only published shifts can be swapped, shift is %s", shift.Status)
		}
		if !workforce.IsFutureDate(shift.Date, ec.Now) {
			return dErrors.New(dErrors.CodeBusinessRule, "only future shifts can be swapped")
		}
		if _, open, err := m.store.OpenSwapFor(ctx, shiftID); err != nil {
			return workforce.Translate(err, "load swaps")
		} else if open {
			return dErrors.New(dErrors.CodeBusinessRule, "shift already has an open swap request")
		}

		saved, err := m.store.SaveSwap(ctx, Swap{
			ID:        id.SwapID(uuid.NewString()),
			Shift:     shiftID,
			Facility:  shift.Facility,
			Requester: ec.Principal,
			Message:   in.Message,
			Status:    SwapOpen,
			CreatedAt: ec.Now,
		})
		if err != nil {
			return workforce.Translate(err, "save swap")
		}
		ec.Record("swap", saved.ID.String(), "shiftId", shiftID.String())
		out = swapResult{SwapID: saved.ID.String(), ShiftID: shiftID.String(), Status: saved.Status}
		return nil
	})
	return out, err
}

type acceptSwapInput struct {
	SwapID string `json:"swapId"`
}

var notRequester = actions.NewPredicate("notRequester", func(ec *actions.ExecutionContext, s Swap) bool {
	return s.Requester != ec.Principal
})

func (m *Module) acceptSwap() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "calendar.accept_swap",
		Permission:  access.ShiftSwap,
		Label:       "Accept shift swap",
		Description: "Take over a shift a colleague offered",
		Keywords:    []string{"swap", "shift", "accept"},
		Schema: schema.New(
			schema.String("swapId").Required().Len(1, 128),
		),
		Metadata: actions.Metadata{Risk: actions.RiskMedium},
	}, m.handleAcceptSwap)
}

func (m *Module) handleAcceptSwap(ctx context.Context, in acceptSwapInput, ec *actions.ExecutionContext) (swapResult, error) {
	swapID := id.SwapID(in.SwapID)
	offered, err := m.store.Swap(ctx, swapID)
	if err != nil {
		return swapResult{}, workforce.Translate(err, "swap not found")
	}

	var out swapResult
	err = m.locker.Do(ctx, shiftKey(offered.Shift), func(ctx context.Context) error {
		sw, err := m.store.Swap(ctx, swapID)
		if err != nil {
			return workforce.Translate(err, "swap not found")
		}
		if err := actions.Require(ec, sw, notRequester); err != nil {
			return err
		}
		if sw.Status != SwapOpen {
			return dErrors.Newf(dErrors.CodeBusinessRule, "swap is %s", sw.Status)
		}
		acceptor, err := m.workforce.Principal(ctx, ec.Principal)
		if err != nil {
			return workforce.Translate(err, "load acceptor")
		}
		if acceptor.Status != workforce.StatusActive {
			return dErrors.Newf(dErrors.CodeBusinessRule, "principal is %s and cannot take shifts", acceptor.Status)
		}
		shift, err := m.workforce.Shift(ctx, sw.Shift)
		if err != nil {
			return workforce.Translate(err, "shift not found")
		}
		if shift.Principal != sw.Requester || shift.Status != workforce.ShiftPublished {
			return dErrors.New(dErrors.CodeBusinessRule, "shift changed since the swap was offered")
		}
		if !workforce.IsFutureDate(shift.Date, ec.Now) {
			return dErrors.New(dErrors.CodeBusinessRule, "shift has already started")
		}
		facility, err := m.workforce.Facility(ctx, shift.Facility)
		if err != nil {
			return workforce.Translate(err, "load facility")
		}
		if _, ok := facility.Member(ec.Principal); !ok {
			return dErrors.New(dErrors.CodeAccessDenied, "only members of the shift's facility can accept it")
		}

		shift.Principal = ec.Principal
		if _, err := m.workforce.SaveShift(ctx, shift); err != nil {
			return workforce.Translate(err, "reassign shift")
		}
		sw.Status = SwapAccepted
		sw.Acceptor = ec.Principal
		sw.AcceptedAt = ec.Now
		saved, err := m.store.SaveSwap(ctx, sw)
		if err != nil {
			return workforce.Translate(err, "save swap")
		}
		ec.Record("swap", saved.ID.String(),
			"shiftId", saved.Shift.String(),
			"from", saved.Requester.String(),
			"to", saved.Acceptor.String(),
		)
		out = swapResult{SwapID: saved.ID.String(), ShiftID: saved.Shift.String(), Status: saved.Status}
		return nil
	})
	return out, err
}

func shiftKey(shift id.ShiftID) string {
	return "shift:" + shift.String()
}
