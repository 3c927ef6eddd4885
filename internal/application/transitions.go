package application

import (
	"hirepath/internal/apperr"
	"hirepath/internal/model"
)

// transitions 显式迁移表。终态可从任一非终态到达，终态没有出边。
var transitions = map[model.ApplicationStatus][]model.ApplicationStatus{
	model.StatusApplied:    {model.StatusInProgress, model.StatusAccepted, model.StatusRejected},
	model.StatusInProgress: {model.StatusHold, model.StatusAccepted, model.StatusRejected},
	model.StatusHold:       {model.StatusInProgress, model.StatusAccepted, model.StatusRejected},
}

// CheckTransition 校验 from -> to 是否允许。
func CheckTransition(from, to model.ApplicationStatus) error {
	if !to.IsValid() {
		return apperr.ErrInvalidStatus.Withf("%q", to)
	}
	if from.IsTerminal() {
		return apperr.ErrInvalidTransition.Withf("application is already %s", from)
	}
	if from == to {
		return apperr.ErrInvalidTransition.Withf("application is already %s", from)
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return apperr.ErrInvalidTransition.Withf("%s -> %s", from, to)
}

// AllowedTransitions 返回某状态可迁移到的状态列表。
func AllowedTransitions(from model.ApplicationStatus) []model.ApplicationStatus {
	next := transitions[from]
	out := make([]model.ApplicationStatus, len(next))
	copy(out, next)
	return out
}
