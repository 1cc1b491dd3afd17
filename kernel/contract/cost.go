package contract

import (
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/xuperchain/xregister/kernel/common/xconfig"
	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/kernel/contract/op"
	"github.com/xuperchain/xregister/kernel/register"
)

var _ FeeCalculator = (*DefaultCost)(nil)

// DefaultCost charges register payload bytes and condition bytes beyond
// the free allowance. Contracts that only settle earlier ones are free.
type DefaultCost struct {
	conf *xconfig.EngineConf
}

func NewDefaultCost(conf *xconfig.EngineConf) *DefaultCost {
	if conf == nil {
		conf = xconfig.GetDefEngineConf()
	}
	return &DefaultCost{conf: conf}
}

func (d *DefaultCost) Cost(c *Contract) (uint64, error) {
	o, err := c.Operation()
	if err != nil {
		return 0, err
	}

	var cost uint64
	switch o.Code {
	case op.Claim, op.Credit, op.Fee, op.Genesis, op.Trust, op.Migrate:
		return 0, nil
	case op.Create, op.Write, op.Append:
		var overflow bool
		cost, overflow = math.SafeMul(uint64(len(o.Data)), d.conf.DataByteFee)
		if overflow {
			return 0, xerror.ErrOverflow.More("data cost")
		}
	}

	if n := uint64(len(o.Condition)); n > d.conf.FreeConditionCost {
		var overflow bool
		cost, overflow = math.SafeAdd(cost, n-d.conf.FreeConditionCost)
		if overflow {
			return 0, xerror.ErrOverflow.More("condition cost")
		}
	}
	return cost, nil
}

// AttachFee prices every contract of tx and, when something is due,
// appends a FEE debiting account. It returns the amount charged.
func (e *Engine) AttachFee(tx *Transaction, account register.Address) (uint64, error) {
	var total uint64
	for _, c := range tx.Contracts {
		o, err := c.Operation()
		if err != nil {
			return 0, err
		}
		if o.Code == op.Fee {
			return 0, xerror.ErrInvalidOperand.More("transaction already carries a fee")
		}
		cost, err := e.fees.Cost(c)
		if err != nil {
			return 0, err
		}
		var overflow bool
		if total, overflow = math.SafeAdd(total, cost); overflow {
			return 0, xerror.ErrOverflow.More("fee total")
		}
	}
	if total == 0 {
		return 0, nil
	}
	if len(tx.Contracts) >= MaxContracts {
		return 0, xerror.ErrInvalidOperand.More("no room for a fee contract")
	}
	tx.Add(NewFee(account, total))
	return total, nil
}
