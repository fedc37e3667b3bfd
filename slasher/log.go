package slasher

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "slasher")
