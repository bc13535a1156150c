/*
Package domain contains the core data model of the macro engine.

It defines what a macro is and what a run produces, and nothing about how either is
loaded, transported or rendered. The package has no dependencies beyond the standard
library, so adapters and front ends can share it freely.

# Key Entities

  - Macro: a named, ordered sequence of Steps.
  - Step: one unit of behavior (Input, Delay, DialogWait, Output, MenuSingle, MenuMulti).
  - Outcome: what an Output step does after it resolves, on either branch.
  - Request / Reply: a human decision escalated to a front end through a UIBridge.
  - Event: a status notification emitted while a run progresses.
  - RunRecord: the persisted summary of one run.
*/
package domain
