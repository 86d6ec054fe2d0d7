/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dialogue

import (
	"tradechat-go/internal/intent"
	"tradechat-go/internal/models"
	"tradechat-go/internal/portfolio"
)

// Context is everything response generation sees for one message.
type Context struct {
	UserId          string
	Tier            models.SubscriptionTier
	IsAuthenticated bool
	Message         Message
	History         Window
	Result          intent.Result
	IsFollowUp      bool
	// Metrics is nil unless the intent needs portfolio data.
	Metrics *portfolio.Metrics
}

// Assemble packages the inputs for response generation. metrics is attached
// only when the classified intent requires portfolio data.
func Assemble(user *models.User, authenticated bool, msg Message, history Window, result intent.Result, followUp bool, metrics *portfolio.Metrics) Context {
	ctx := Context{
		UserId:          user.Id,
		Tier:            user.Usage.Tier,
		IsAuthenticated: authenticated,
		Message:         msg,
		History:         history,
		Result:          result,
		IsFollowUp:      followUp,
	}
	if result.Intent.RequiresPortfolioData() {
		ctx.Metrics = metrics
	}
	return ctx
}
