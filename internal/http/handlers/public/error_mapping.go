package public

import (
	"github.com/bidua-hosting/backend/internal/http/response"
	"github.com/bidua-hosting/backend/internal/service"

	"github.com/gin-gonic/gin"
)

var payoutRequestErrorRules = []mappedHandlerError{
	{target: service.ErrUserSuspended, code: response.CodeForbidden, msg: "account suspended"},
	{target: service.ErrPayoutBelowMinimum, code: response.CodeBadRequest, msg: "payout amount below minimum"},
	{target: service.ErrInsufficientBalance, code: response.CodeBadRequest, msg: "insufficient available balance"},
	{target: service.ErrPayoutMethodInvalid, code: response.CodeBadRequest, msg: "payout method not supported"},
	{target: service.ErrPayoutDetailsIncomplete, code: response.CodeBadRequest, msg: "payout details incomplete"},
	{target: service.ErrReferralConfigInvalid, code: response.CodeInternal, msg: "referral configuration invalid"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "user not found"},
}

var applyReferralCodeErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidReferralCode, code: response.CodeBadRequest, msg: "invalid referral code"},
	{target: service.ErrReferralSelf, code: response.CodeBadRequest, msg: "cannot use your own referral code"},
	{target: service.ErrReferralExists, code: response.CodeBadRequest, msg: "referral already bound"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "user not found"},
}

func respondPayoutRequestError(c *gin.Context, err error) {
	respondWithMappedError(c, err, payoutRequestErrorRules, response.CodeInternal, "payout request failed")
}

func respondApplyReferralCodeError(c *gin.Context, err error) {
	respondWithMappedError(c, err, applyReferralCodeErrorRules, response.CodeInternal, "referral binding failed")
}
