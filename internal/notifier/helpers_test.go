package notifier

import logx "pirbot/pkg/logx"

func testLogger() logx.Logger { return logx.Nop() }
