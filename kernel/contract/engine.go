// 寄存器合约执行引擎，负责合约的构建、执行与验证
package contract

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gammazero/deque"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/xuperchain/xregister/kernel/common/xconfig"
	"github.com/xuperchain/xregister/kernel/common/xcontext"
	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/contract/condition"
	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/ledger"
	"github.com/xuperchain/xregister/kernel/register"
	"github.com/xuperchain/xregister/lib/logs"
	"github.com/xuperchain/xregister/lib/metrics"
	"github.com/xuperchain/xregister/lib/wideint"
)

const (
	stageBuild   = "build"
	stageExecute = "execute"
	stageVerify  = "verify"
)

// EngineCtx carries the engine collaborators. Store is required, the others
// may be nil: CLAIM and CREDIT then need a reference from the same
// transaction, MIGRATE always fails and conditions warn on ledger opcodes.
// When Contracts is set it commits the connect scopes of Store.
type EngineCtx struct {
	xcontext.BaseCtx
	Conf      *xconfig.EngineConf
	Store     ledger.RegisterStore
	Contracts ContractIndex
	Legacy    LegacyReader
	Chain     ledger.ChainReader
	Fees      FeeCalculator
}

type Engine struct {
	conf    *xconfig.EngineConf
	store   ledger.RegisterStore
	index   ContractIndex
	legacy  LegacyReader
	chain   ledger.ChainReader
	fees    FeeCalculator
	handled *cache.Cache
	log     logs.Logger
}

func NewEngine(ctx *EngineCtx) (*Engine, error) {
	if ctx == nil || ctx.Store == nil {
		return nil, xerror.ErrStorage.More("engine needs a register store")
	}
	conf := ctx.Conf
	if conf == nil {
		conf = xconfig.GetDefEngineConf()
	}

	e := &Engine{
		conf:    conf,
		store:   ctx.Store,
		index:   ctx.Contracts,
		legacy:  ctx.Legacy,
		chain:   ctx.Chain,
		fees:    ctx.Fees,
		handled: cache.New(conf.HandledTTL, 2*conf.HandledTTL),
		log:     ctx.GetLog(),
	}
	if e.fees == nil {
		e.fees = NewDefaultCost(conf)
	}
	return e, nil
}

type ref struct {
	txid  wideint.U512
	index uint32
}

// run is one pass over a scope. Contracts processed in it can be
// referenced before the scope commits.
type run struct {
	e       *Engine
	scope   ledger.Scope
	pending map[ref]*Contract
}

func (e *Engine) newRun(scope ledger.Scope) *run {
	return &run{e: e, scope: scope, pending: make(map[ref]*Contract)}
}

// Build records the pre-state of the target and the checksum of the
// resulting post-state. A built contract keeps its record, so a relayed
// contract is executed against what its author recorded.
func (e *Engine) Build(scope ledger.Scope, c *Contract) error {
	return e.newRun(scope).build(c)
}

// Execute applies a built contract to scope.
func (e *Engine) Execute(scope ledger.Scope, c *Contract) error {
	return e.newRun(scope).execute(c)
}

// Verify replays an executed contract against its recorded pre-state.
func (e *Engine) Verify(scope ledger.Scope, c *Contract) error {
	return e.newRun(scope).verify(c)
}

func (r *run) build(c *Contract) error {
	switch c.phase {
	case PhaseBuilt:
		return nil
	case PhaseUnbuilt:
	default:
		return xerror.ErrBadPhase.More("build in phase %s", c.phase)
	}
	o, err := c.Operation()
	if err != nil {
		return err
	}

	pre, err := r.target(c, o)
	if err != nil {
		return err
	}
	if err := r.authorize(c, o, pre, false); err != nil {
		return err
	}
	post, err := r.apply(c, o, pre)
	if err != nil {
		return err
	}
	c.registers = encodeRecord(pre, post)
	c.phase = PhaseBuilt
	return nil
}

func (r *run) execute(c *Contract) error {
	if c.phase != PhaseBuilt {
		return xerror.ErrBadPhase.More("execute in phase %s", c.phase)
	}
	o, err := c.Operation()
	if err != nil {
		return err
	}
	rec, err := decodeRecord(c.registers)
	if err != nil {
		return err
	}

	if (o.Code == op.Create) != (rec.pre == nil) {
		return xerror.ErrPreState.More("%s record does not fit the primitive", o.Code)
	}
	cur, err := r.target(c, o)
	if err != nil {
		return err
	}
	if o.Code != op.Create && !cur.Equal(rec.pre) {
		return xerror.ErrPreState.More("%s changed since build", o.Address)
	}
	if err := r.authorize(c, o, cur, true); err != nil {
		return err
	}
	post, err := r.apply(c, o, cur)
	if err != nil {
		return err
	}
	if post.Checksum != rec.checksum {
		return xerror.ErrPostState.More("checksum %x, recorded %x", post.Checksum, rec.checksum)
	}

	addr, _ := c.Target()
	if err := r.scope.WriteState(addr, post); err != nil {
		return err
	}
	c.phase = PhaseExecuted
	return nil
}

func (r *run) verify(c *Contract) error {
	if c.phase != PhaseExecuted {
		return xerror.ErrBadPhase.More("verify in phase %s", c.phase)
	}
	o, err := c.Operation()
	if err != nil {
		return err
	}
	rec, err := decodeRecord(c.registers)
	if err != nil {
		return err
	}

	var pre *register.State
	if rec.pre != nil {
		pre = rec.pre.Clone()
	}
	post, err := r.apply(c, o, pre)
	if err != nil {
		return xerror.ErrPostState.Wrap(err)
	}
	if post.Checksum != rec.checksum {
		return xerror.ErrPostState.More("replay checksum %x, recorded %x", post.Checksum, rec.checksum)
	}

	addr, _ := c.Target()
	stored, err := r.scope.ReadState(addr)
	if err != nil {
		return xerror.ErrPostState.Wrap(err)
	}
	if stored.Checksum != rec.checksum {
		return xerror.ErrPostState.More("stored checksum %x, recorded %x", stored.Checksum, rec.checksum)
	}
	c.phase = PhaseVerified
	return nil
}

// target reads the current state of the contract's register. CREATE
// expects none and yields nil.
func (r *run) target(c *Contract, o *Operation) (*register.State, error) {
	addr, err := c.Target()
	if err != nil {
		return nil, err
	}
	s, err := r.scope.ReadState(addr)
	if o.Code == op.Create {
		switch {
		case err == nil:
			return nil, xerror.ErrRegisterExists.More("%s", addr)
		case errors.Is(err, xerror.ErrRegisterNotFound):
			return nil, nil
		}
		return nil, err
	}
	return s, err
}

// readReference reads a register other than the target.
func (r *run) readReference(addr register.Address) (*register.State, error) {
	s, err := r.scope.ReadState(addr)
	if errors.Is(err, xerror.ErrRegisterNotFound) {
		return nil, xerror.ErrInvalidReference.More("%s not found", addr)
	}
	return s, err
}

func (r *run) lookup(txid wideint.U512, index uint32) (*Contract, error) {
	if c, ok := r.pending[ref{txid, index}]; ok {
		return c, nil
	}
	if r.e.index == nil {
		return nil, xerror.ErrInvalidReference.More("contract %s:%d", txid.Hex()[:16], index)
	}
	return r.e.index.ReadContract(txid, index)
}

// reference resolves the contract o points at and checks its opcode.
func (r *run) reference(o *Operation, want op.Opcode) (*Contract, *Operation, error) {
	c, err := r.lookup(o.Txid, o.Contract)
	if err != nil {
		return nil, nil, err
	}
	ro, err := c.Operation()
	if err != nil {
		return nil, nil, err
	}
	if ro.Code != want {
		return nil, nil, xerror.ErrInvalidReference.More("%s is not a %s", ro.Code, want)
	}
	return c, ro, nil
}

// evaluate runs the condition of src (operation ro) on behalf of c.
func (r *run) evaluate(src *Contract, ro *Operation, c *Contract, pre *register.State) error {
	refPre, _ := src.PreState()
	env := &condition.Env{
		Contract: condition.Info{
			Genesis:    src.Caller,
			Timestamp:  src.Timestamp,
			Operations: src.Primitive(),
			PreState:   refPre,
		},
		Caller: condition.Info{
			Genesis:    c.Caller,
			Timestamp:  c.Timestamp,
			Operations: c.txOps,
			PreState:   pre,
		},
		Registers: r.scope,
		Chain:     r.e.chain,
	}
	res, err := condition.Evaluate(ro.Condition, env)
	if err != nil {
		metrics.ConditionCounter.WithLabelValues("malformed").Inc()
		return err
	}
	metrics.ConditionCounter.WithLabelValues(metrics.Result(res.Value)).Inc()
	metrics.ConditionCostHistogram.Observe(float64(res.Cost))
	if !res.Value {
		return xerror.ErrConditionFalse.More("cost %d warnings %#x", res.Cost, res.Warnings)
	}
	return nil
}

// process runs every contract of tx through the three phases. On failure
// the contract is marked failed and the scope must be aborted.
func (r *run) process(tx *Transaction) error {
	if err := tx.Sanitize(); err != nil {
		return err
	}
	txid := tx.Txid()
	for _, c := range tx.Contracts {
		if err := r.step(c); err != nil {
			c.fail()
			r.e.log.Warn("contract rejected", "txid", txid.Hex()[:16], "index", c.Index,
				"phase", c.phase, "err", err)
			return err
		}
		r.pending[ref{txid, c.Index}] = c
	}
	return nil
}

func (r *run) step(c *Contract) error {
	begin := time.Now()
	o, _ := c.Operation()
	stage := stageBuild
	err := r.build(c)
	if err == nil {
		stage = stageExecute
		err = r.execute(c)
	}
	if err == nil {
		stage = stageVerify
		err = r.verify(c)
	}
	r.e.log.Debug("contract processed", "txid", c.Txid.Hex()[:16], "index", c.Index,
		"opcode", o.Code, "stage", stage, "err", err)
	code := strconv.Itoa(xerror.CodeOf(err))
	metrics.ContractCounter.WithLabelValues(o.Code.String(), stage, code).Inc()
	metrics.ContractHistogram.WithLabelValues(o.Code.String()).Observe(time.Since(begin).Seconds())
	return err
}

// Process runs tx inside a caller-owned scope.
func (e *Engine) Process(scope ledger.Scope, tx *Transaction) error {
	return e.newRun(scope).process(tx)
}

// Connect applies a single transaction and commits it.
func (e *Engine) Connect(ctx context.Context, tx *Transaction) error {
	return e.ConnectBlock(ctx, []*Transaction{tx})
}

// ConnectBlock applies txs in order in one scope. Either every
// transaction commits or none does.
func (e *Engine) ConnectBlock(ctx context.Context, txs []*Transaction) error {
	octx, err := xcontext.CreateOpCtx(ctx, e.log.With("block_txs", len(txs)))
	if err != nil {
		return xerror.ErrUnknown.Wrap(err)
	}
	tm := octx.GetTimer()
	if err := e.sanitize(octx, txs); err != nil {
		return err
	}
	tm.Mark("sanitize")

	var queue deque.Deque
	seen := make(map[wideint.U512]bool, len(txs))
	for _, tx := range txs {
		txid := tx.Txid()
		if seen[txid] {
			return xerror.ErrTxHandled.More("%s repeated in block", txid.Hex()[:16])
		}
		if err := e.checkHandled(txid); err != nil {
			return err
		}
		seen[txid] = true
		queue.PushBack(tx)
	}

	scope, err := e.store.TxnBegin(ledger.ModeConnect)
	if err != nil {
		return err
	}
	mode := ledger.ModeConnect.String()
	metrics.ScopeGauge.WithLabelValues(mode).Inc()
	defer metrics.ScopeGauge.WithLabelValues(mode).Dec()

	r := e.newRun(scope)
	for queue.Len() > 0 {
		err := octx.Err()
		if err == nil {
			err = r.process(queue.PopFront().(*Transaction))
		}
		if err != nil {
			metrics.ScopeCounter.WithLabelValues(mode, metrics.Result(false)).Inc()
			e.abort(scope)
			return err
		}
	}
	tm.Mark("process")

	if err := e.commit(scope, txs); err != nil {
		metrics.ScopeCounter.WithLabelValues(mode, metrics.Result(false)).Inc()
		// nothing was written, the block can be connected again as is
		for _, tx := range txs {
			for _, c := range tx.Contracts {
				c.phase = PhaseBuilt
			}
		}
		return err
	}
	metrics.ScopeCounter.WithLabelValues(mode, metrics.Result(true)).Inc()
	for _, tx := range txs {
		e.handled.SetDefault(tx.Txid().Hex(), struct{}{})
	}
	tm.Mark("commit")
	metrics.ObserveTimer(tm)
	octx.GetLog().Info("block connected", "timer", tm.Print())
	return nil
}

// commit writes the scope and, with an index, the contracts of txs at once.
func (e *Engine) commit(scope ledger.Scope, txs []*Transaction) error {
	if e.index == nil {
		return e.store.TxnCommit(scope)
	}
	return e.index.CommitContracts(scope, txs...)
}

// checkHandled rejects a txid seen recently or already indexed.
func (e *Engine) checkHandled(txid wideint.U512) error {
	if _, ok := e.handled.Get(txid.Hex()); ok {
		return xerror.ErrTxHandled.More("%s", txid.Hex()[:16])
	}
	if e.index == nil {
		return nil
	}
	ok, err := e.index.HasTransaction(txid)
	if err != nil {
		return err
	}
	if ok {
		return xerror.ErrTxHandled.More("%s indexed", txid.Hex()[:16])
	}
	return nil
}

func (e *Engine) sanitize(ctx context.Context, txs []*Transaction) error {
	g, _ := errgroup.WithContext(ctx)
	if e.conf.VerifyWorkers > 0 {
		g.SetLimit(e.conf.VerifyWorkers)
	}
	for _, tx := range txs {
		tx := tx
		g.Go(func() error {
			if err := tx.Sanitize(); err != nil {
				return xerror.CastError(err).More("tx %s", tx.Txid().Hex()[:16])
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) abort(scope ledger.Scope) {
	if err := e.store.TxnAbort(scope); err != nil {
		e.log.Error("abort scope failed", "err", err)
	}
}

// Accept checks tx against the current committed state without changing
// it. Accepted contracts are left built so the transaction can later be
// connected as is.
func (e *Engine) Accept(tx *Transaction) (err error) {
	if err := e.checkHandled(tx.Txid()); err != nil {
		return err
	}
	scope, err := e.store.TxnBegin(ledger.ModeSpeculative)
	if err != nil {
		return err
	}
	mode := ledger.ModeSpeculative.String()
	metrics.ScopeGauge.WithLabelValues(mode).Inc()
	defer func() {
		metrics.ScopeGauge.WithLabelValues(mode).Dec()
		metrics.ScopeCounter.WithLabelValues(mode, metrics.Result(err == nil)).Inc()
		e.abort(scope)
	}()
	if err := e.newRun(scope).process(tx); err != nil {
		return err
	}
	for _, c := range tx.Contracts {
		c.phase = PhaseBuilt
	}
	return nil
}

// BuildTransaction fills the register streams of every contract of tx so
// it can be signed and relayed. Committed state is not changed.
func (e *Engine) BuildTransaction(tx *Transaction) error {
	if err := tx.Sanitize(); err != nil {
		return err
	}
	scope, err := e.store.TxnBegin(ledger.ModeSpeculative)
	if err != nil {
		return err
	}
	defer e.abort(scope)

	r := e.newRun(scope)
	for _, c := range tx.Contracts {
		if err := r.build(c); err != nil {
			return xerror.CastError(err).More("contract %d", c.Index)
		}
		// later contracts read the effect of earlier ones
		if err := r.execute(c); err != nil {
			return xerror.CastError(err).More("contract %d", c.Index)
		}
		r.pending[ref{tx.Txid(), c.Index}] = c
	}
	// executed contracts go back to built for relaying
	for _, c := range tx.Contracts {
		c.phase = PhaseBuilt
	}
	return nil
}
