//go:build e2e

package e2e_test

import (
	"fmt"
	"time"
)

// uniqueCaseID keeps runs against a shared deployment from colliding.
func uniqueCaseID() string {
	return fmt.Sprintf("e2e-%d", time.Now().UnixNano())
}

const summonsText = `STATE OF MINNESOTA                            DISTRICT COURT
COUNTY OF HENNEPIN                 HOUSING COURT DIVISION

Oak Grove Properties LLC,
          Plaintiff,
v.
Maria Lopez,
          Defendant.

EVICTION ACTION SUMMONS

Case No: 27-CV-27-0042

THE STATE OF MINNESOTA TO THE ABOVE-NAMED DEFENDANT:

You are hereby summoned and required to serve upon plaintiff's
attorney a written answer to the attached complaint. The hearing
is scheduled for October 15, 2027 at 9:00 a.m. before the
Hennepin County Housing Court. If you fail to appear, judgment
by default will be entered against you. The total amount
claimed is $3,900.00.`

const leaseText = `RESIDENTIAL LEASE AGREEMENT

LANDLORD: Oak Grove Properties LLC
TENANT: Maria Lopez
PREMISES: 448 Thomas Avenue N, Minneapolis, MN 55405

MONTHLY RENT: $1,200.00 due on the first day of each month.
SECURITY DEPOSIT: $1,200.00 held per Minn. Stat. 504B.178.
The lease term begins January 1, 2027 and ends December 31, 2027.`
