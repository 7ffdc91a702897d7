//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/jsamuelsen/callrelay/internal/app"
	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

func registerFaxSteps(ctx *godog.ScenarioContext, tc *testContext) {
	ctx.Step(`^fax number "([^"]*)" delivers to "([^"]*)" with limit (\d+)$`, tc.faxNumberDeliversTo)
	ctx.Step(`^the engine routes call "([^"]*)" from "([^"]*)" to "([^"]*)"$`, tc.theEngineRoutesCall)
	ctx.Step(`^the call is accepted for fax reception$`, tc.theCallIsAcceptedForFax)
	ctx.Step(`^the call is refused as busy$`, tc.theCallIsRefusedAsBusy)
	ctx.Step(`^the call is not handled$`, tc.theCallIsNotHandled)
	ctx.Step(`^"([^"]*)" has (\d+) active fax calls$`, tc.numberHasActiveFaxCalls)
	ctx.Step(`^call "([^"]*)" hangs up with (\d+) pages$`, tc.callHangsUpWithPages)
	ctx.Step(`^(\d+) mails? (?:is|are) sent to "([^"]*)"$`, tc.mailsAreSentTo)
	ctx.Step(`^no mail is sent$`, tc.noMailIsSent)
	ctx.Step(`^the mail carries a PDF attachment$`, tc.theMailCarriesAPDF)
	ctx.Step(`^the spooled image of call "([^"]*)" is removed$`, tc.theSpooledImageIsRemoved)
	ctx.Step(`^the "([^"]*)" module holds no calls$`, tc.theModuleHoldsNoCalls)
	ctx.Step(`^the "([^"]*)" module holds call "([^"]*)"$`, tc.theModuleHoldsCall)
}

func registerForwardSteps(ctx *godog.ScenarioContext, tc *testContext) {
	ctx.Step(`^number "([^"]*)" forwards to "([^"]*)" after (\d+) seconds$`, tc.numberForwardsTo)
	ctx.Step(`^the engine routes "([^"]*)" to "([^"]*)"$`, tc.theEngineRoutesNumber)
	ctx.Step(`^the engine executes call "([^"]*)" to "([^"]*)"$`, tc.theEngineExecutesCall)
	ctx.Step(`^the answer wait is set to "([^"]*)"$`, tc.theAnswerWaitIsSetTo)
	ctx.Step(`^call "([^"]*)" disconnects with reason "([^"]*)"$`, tc.callDisconnects)
	ctx.Step(`^leg "([^"]*)" of call "([^"]*)" disconnects with reason "([^"]*)"$`, tc.legDisconnects)
	ctx.Step(`^call "([^"]*)" is answered$`, tc.callIsAnswered)
	ctx.Step(`^the engine was asked to route "([^"]*)" (once|\d+ times)$`, tc.theEngineWasAskedToRoute)
	ctx.Step(`^the engine was asked to execute "([^"]*)" once with status "([^"]*)"$`, tc.theEngineWasAskedToExecute)
	ctx.Step(`^the engine was asked to execute anything (\d+) times$`, tc.theEngineExecutedAnything)
}

// relay sends one message and keeps the reply for the assertion steps.
func (tc *testContext) relay(hook string, params map[string]string, resourceID string) error {
	ctx, cancel := stepContext()
	defer cancel()

	reply, err := tc.h.send(ctx, hook, params, resourceID)
	if err != nil {
		return fmt.Errorf("relaying %s: %w", hook, err)
	}

	if reply.Status != 200 {
		return fmt.Errorf("relaying %s: status %d", hook, reply.Status)
	}

	tc.reply = reply

	return nil
}

func (tc *testContext) faxNumberDeliversTo(number, email string, limit int) error {
	return tc.h.dir.SaveFaxRule(context.Background(), account, ports.FaxRule{
		Number:          number,
		DeliveryAddress: email,
		Limit:           limit,
	})
}

func (tc *testContext) theEngineRoutesCall(id, caller, called string) error {
	err := tc.relay(domain.HookCallRoute, map[string]string{
		domain.ParamID:     id,
		domain.ParamCaller: caller,
		domain.ParamCalled: called,
	}, "leg/"+id)
	if err != nil {
		return err
	}

	if strings.HasPrefix(tc.reply.RetValue, app.FaxReceiveTarget) {
		tc.targets[id] = tc.reply.RetValue
	}

	return nil
}

func (tc *testContext) theCallIsAcceptedForFax() error {
	if !tc.reply.Handled {
		return errors.New("route was not handled")
	}

	if _, ok := capturePath(tc.reply.RetValue); !ok {
		return fmt.Errorf("return value %q is not a fax receive target", tc.reply.RetValue)
	}

	return nil
}

func (tc *testContext) theCallIsRefusedAsBusy() error {
	switch {
	case !tc.reply.Handled:
		return errors.New("route was not handled")
	case tc.reply.RetValue != domain.RetValueReject:
		return fmt.Errorf("expected return value %q, got %q", domain.RetValueReject, tc.reply.RetValue)
	case tc.reply.Params[domain.ParamError] != "busy":
		return fmt.Errorf("expected error busy, got %q", tc.reply.Params[domain.ParamError])
	case tc.reply.Params[domain.ParamReason] != "Busy there":
		return fmt.Errorf("expected reason %q, got %q", "Busy there", tc.reply.Params[domain.ParamReason])
	}

	return nil
}

func (tc *testContext) theCallIsNotHandled() error {
	if tc.reply.Handled {
		return fmt.Errorf("route was handled with %q", tc.reply.RetValue)
	}

	return nil
}

func (tc *testContext) numberHasActiveFaxCalls(number string, want int) error {
	ctx, cancel := stepContext()
	defer cancel()

	limits, err := tc.h.limits(ctx, app.FaxModuleName)
	if err != nil {
		return err
	}

	if got := limits[number]; got != want {
		return fmt.Errorf("expected %d active calls for %s, got %d", want, number, got)
	}

	return nil
}

// callHangsUpWithPages writes the image the call leg would have received and
// reports the hangup of that leg.
func (tc *testContext) callHangsUpWithPages(id string, pages int) error {
	path, ok := capturePath(tc.targets[id])
	if !ok {
		return fmt.Errorf("call %q was never accepted for fax reception", id)
	}

	if err := os.WriteFile(path, []byte("II*\x00fax image of "+id), 0o600); err != nil {
		return err
	}

	return tc.relay(domain.HookChanHangup, map[string]string{
		domain.ParamID:         "fax/" + id,
		domain.ParamLastPeerID: id,
		domain.ParamAddress:    path,
		domain.ParamFaxPages:   strconv.Itoa(pages),
		domain.ParamFaxType:    "T.30",
		domain.ParamFaxECM:     "true",
	}, "")
}

func (tc *testContext) mailsAreSentTo(want int, to string) error {
	mails, err := tc.h.outbox()
	if err != nil {
		return err
	}

	if len(mails) != want {
		return fmt.Errorf("expected %d mails, got %d", want, len(mails))
	}

	for _, m := range mails {
		if !strings.Contains(m, "To: "+to+"\r\n") {
			return fmt.Errorf("mail is not addressed to %s:\n%s", to, m)
		}
	}

	return nil
}

func (tc *testContext) noMailIsSent() error {
	mails, err := tc.h.outbox()
	if err != nil {
		return err
	}

	if len(mails) != 0 {
		return fmt.Errorf("expected no mail, got %d", len(mails))
	}

	return nil
}

func (tc *testContext) theMailCarriesAPDF() error {
	mails, err := tc.h.outbox()
	if err != nil {
		return err
	}

	if len(mails) == 0 {
		return errors.New("no mail was sent")
	}

	m := mails[len(mails)-1]
	if !strings.Contains(m, "Content-Type: application/pdf") || !strings.Contains(m, `.pdf"`) {
		return fmt.Errorf("mail has no pdf attachment:\n%s", m)
	}

	return nil
}

func (tc *testContext) theSpooledImageIsRemoved(id string) error {
	path, _ := capturePath(tc.targets[id])

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("spooled image %s still exists (stat: %v)", path, err)
	}

	return nil
}

func (tc *testContext) theModuleHoldsNoCalls(module string) error {
	ctx, cancel := stepContext()
	defer cancel()

	ids, err := tc.h.registered(ctx, module)
	if err != nil {
		return err
	}

	if len(ids) != 0 {
		return fmt.Errorf("%s still holds %v", module, ids)
	}

	return nil
}

func (tc *testContext) theModuleHoldsCall(module, id string) error {
	ctx, cancel := stepContext()
	defer cancel()

	ids, err := tc.h.registered(ctx, module)
	if err != nil {
		return err
	}

	if !slices.Contains(ids, id) {
		return fmt.Errorf("%s does not hold %q, holds %v", module, id, ids)
	}

	return nil
}

func (tc *testContext) numberForwardsTo(source, target string, delay int) error {
	return tc.h.dir.SaveForwardRule(context.Background(), account, ports.ForwardRule{
		SourceNumber:  source,
		ForwardTarget: target,
		Delay:         delay,
	})
}

func (tc *testContext) theEngineRoutesNumber(number, target string) error {
	tc.h.engine.route(number, target)
	return nil
}

func (tc *testContext) theEngineExecutesCall(id, called string) error {
	return tc.relay(domain.HookCallExecute, map[string]string{
		domain.ParamID:     id,
		domain.ParamCaller: "+1999",
		domain.ParamCalled: called,
	}, "leg/"+id)
}

func (tc *testContext) theAnswerWaitIsSetTo(want string) error {
	if got := tc.reply.Params[domain.ParamMaxCall]; got != want {
		return fmt.Errorf("expected maxcall %q, got %q", want, got)
	}

	return nil
}

func (tc *testContext) callDisconnects(id, reason string) error {
	return tc.relay(domain.HookChanDisconnected, map[string]string{
		domain.ParamID:     id,
		domain.ParamReason: reason,
	}, "leg/"+id)
}

func (tc *testContext) legDisconnects(leg, id, reason string) error {
	return tc.relay(domain.HookChanDisconnected, map[string]string{
		domain.ParamID:       id,
		domain.ParamTargetID: leg,
		domain.ParamReason:   reason,
	}, "leg/"+id)
}

func (tc *testContext) callIsAnswered(id string) error {
	return tc.relay(domain.HookCallAnswered, map[string]string{
		domain.ParamID:       "peer/" + id,
		domain.ParamTargetID: id,
	}, "")
}

func times(s string) (int, error) {
	if s == "once" {
		return 1, nil
	}

	return strconv.Atoi(strings.TrimSuffix(s, " times"))
}

func (tc *testContext) theEngineWasAskedToRoute(number, count string) error {
	want, err := times(count)
	if err != nil {
		return err
	}

	got := 0
	for _, m := range tc.h.engine.messages(domain.HookCallRoute) {
		if m.Params[domain.ParamCalled] == number {
			got++
		}
	}

	if got != want {
		return fmt.Errorf("expected %d route requests for %s, got %d", want, number, got)
	}

	return nil
}

func (tc *testContext) theEngineWasAskedToExecute(callTo, status string) error {
	execs := tc.h.engine.messages(domain.HookCallExecute)
	if len(execs) != 1 {
		return fmt.Errorf("expected 1 execute request, got %d", len(execs))
	}

	m := execs[0]
	if m.Params[domain.ParamCallTo] != callTo || m.Params[domain.ParamStatus] != status {
		return fmt.Errorf("unexpected execute request %v", m.Params)
	}

	if m.UserData == "" {
		return errors.New("execute request does not carry the original call leg")
	}

	return nil
}

func (tc *testContext) theEngineExecutedAnything(want int) error {
	if got := len(tc.h.engine.messages(domain.HookCallExecute)); got != want {
		return fmt.Errorf("expected %d execute requests, got %d", want, got)
	}

	return nil
}
